package db

// The index stores metadata and a search preview only. Bodies, header maps and
// part metadata are re-parsed from the saved message resource on demand.
const schema = `
-- One row per saved Gmail message resource
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    gmail_id TEXT UNIQUE NOT NULL,
    file_path TEXT UNIQUE NOT NULL,
    thread_id TEXT,
    label_ids TEXT,          -- ",INBOX,UNREAD," so labels can be matched with LIKE
    snippet TEXT,
    history_id TEXT,
    internal_date INTEGER,   -- epoch milliseconds, NULL when absent or not numeric
    subject TEXT,
    from_name TEXT,
    from_address TEXT,
    recipients TEXT,         -- comma-separated to, cc and bcc addresses
    body_preview TEXT,       -- First 10KB for FTS5 search only
    has_html BOOLEAN DEFAULT 0,
    attachment_count INTEGER DEFAULT 0,
    inline_count INTEGER DEFAULT 0,
    indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Full-text search virtual table
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    subject,
    from_name,
    from_address,
    recipients,
    snippet,
    body_preview,
    content='messages',
    content_rowid='id'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, subject, from_name, from_address, recipients, snippet, body_preview)
    VALUES (new.id, new.subject, new.from_name, new.from_address, new.recipients, new.snippet, new.body_preview);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, subject, from_name, from_address, recipients, snippet, body_preview)
    VALUES ('delete', old.id, old.subject, old.from_name, old.from_address, old.recipients, old.snippet, old.body_preview);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, subject, from_name, from_address, recipients, snippet, body_preview)
    VALUES ('delete', old.id, old.subject, old.from_name, old.from_address, old.recipients, old.snippet, old.body_preview);
    INSERT INTO messages_fts(rowid, subject, from_name, from_address, recipients, snippet, body_preview)
    VALUES (new.id, new.subject, new.from_name, new.from_address, new.recipients, new.snippet, new.body_preview);
END;

-- Attachment and inline part metadata; content is fetched from Gmail by attachment_id
CREATE TABLE IF NOT EXISTS attachments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id INTEGER NOT NULL,
    filename TEXT NOT NULL,
    mime_type TEXT,
    size INTEGER,
    attachment_id TEXT,
    disposition TEXT NOT NULL,  -- attachment | inline
    FOREIGN KEY(message_id) REFERENCES messages(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_internal_date ON messages(internal_date DESC);
CREATE INDEX IF NOT EXISTS idx_messages_thread_id ON messages(thread_id, internal_date);
CREATE INDEX IF NOT EXISTS idx_messages_from_address ON messages(from_address);
CREATE INDEX IF NOT EXISTS idx_attachments_message_id ON attachments(message_id);
`
