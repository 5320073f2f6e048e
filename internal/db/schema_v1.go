package db

const initialSchemaV1 = `
CREATE TABLE IF NOT EXISTS users (
    email         TEXT PRIMARY KEY COLLATE NOCASE,
    full_name     TEXT NOT NULL,
    dob           TEXT,
    password_hash TEXT NOT NULL,
    bio           TEXT,
    link          TEXT,
    profile_image TEXT,
    created       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_full_name ON users(full_name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS posts (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL,
    author_email TEXT NOT NULL,
    created      TEXT NOT NULL,

    FOREIGN KEY (author_email) REFERENCES users(email)
);

CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created DESC);
CREATE INDEX IF NOT EXISTS idx_posts_author  ON posts(author_email, created DESC);

CREATE TABLE IF NOT EXISTS post_likes (
    post_id    TEXT NOT NULL,
    user_email TEXT NOT NULL COLLATE NOCASE,
    created    TEXT NOT NULL,
    PRIMARY KEY (post_id, user_email),
    FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS post_comments (
    id           TEXT PRIMARY KEY,
    post_id      TEXT NOT NULL,
    author_email TEXT NOT NULL,
    content      TEXT NOT NULL,
    created      TEXT NOT NULL,
    FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_post_comments_post ON post_comments(post_id, created ASC);

CREATE TABLE IF NOT EXISTS follows (
    follower_email  TEXT NOT NULL COLLATE NOCASE,
    following_email TEXT NOT NULL COLLATE NOCASE,
    created         TEXT NOT NULL,
    PRIMARY KEY (follower_email, following_email)
);

CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_email);

CREATE VIRTUAL TABLE IF NOT EXISTS posts_fts USING fts5(
    id UNINDEXED,
    title,
    content,
    content='posts',
    content_rowid='rowid',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS posts_fts_insert AFTER INSERT ON posts BEGIN
    INSERT INTO posts_fts(rowid, id, title, content)
    VALUES (new.rowid, new.id, new.title, new.content);
END;

CREATE TRIGGER IF NOT EXISTS posts_fts_delete AFTER DELETE ON posts BEGIN
    INSERT INTO posts_fts(posts_fts, rowid, id, title, content)
    VALUES ('delete', old.rowid, old.id, old.title, old.content);
END;

CREATE TABLE IF NOT EXISTS notifications (
    id              TEXT PRIMARY KEY,
    recipient_email TEXT NOT NULL COLLATE NOCASE,
    sender_email    TEXT NOT NULL,
    type            TEXT NOT NULL CHECK(type IN ('like', 'comment', 'follow', 'message')),
    post_id         TEXT,
    thread_id       TEXT,
    message         TEXT NOT NULL,
    created         TEXT NOT NULL,
    read            INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_email, read, created DESC);
`
