package db

const chatSchemaV2 = `
CREATE TABLE IF NOT EXISTS chat_threads (
    id      TEXT PRIMARY KEY,
    user_a  TEXT NOT NULL COLLATE NOCASE,
    user_b  TEXT NOT NULL COLLATE NOCASE,
    created TEXT NOT NULL,
    updated TEXT NOT NULL,
    CHECK (user_a < user_b),
    UNIQUE (user_a, user_b)
);

CREATE INDEX IF NOT EXISTS idx_chat_threads_a ON chat_threads(user_a, updated DESC);
CREATE INDEX IF NOT EXISTS idx_chat_threads_b ON chat_threads(user_b, updated DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT UNIQUE NOT NULL,
    thread_id    TEXT NOT NULL,
    sender_email TEXT NOT NULL,
    text         TEXT NOT NULL,
    client_id    TEXT,
    created      TEXT NOT NULL,
    FOREIGN KEY (thread_id) REFERENCES chat_threads(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_thread ON chat_messages(thread_id, seq DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_messages_client
    ON chat_messages(thread_id, sender_email, client_id) WHERE client_id IS NOT NULL;
`
