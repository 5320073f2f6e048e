package db

// Lookups by author used when an account is removed.
const accountIndexesV3 = `
CREATE INDEX IF NOT EXISTS idx_post_comments_author ON post_comments(author_email);
CREATE INDEX IF NOT EXISTS idx_post_likes_user ON post_likes(user_email);
CREATE INDEX IF NOT EXISTS idx_notifications_sender ON notifications(sender_email);
`
