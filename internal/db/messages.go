package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// timeFormats are the layouts SQLite timestamps come back in, depending on
// whether the value was written by CURRENT_TIMESTAMP or by the driver
var timeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 -0700",
	"2006-01-02 15:04:05 -0700 -0700",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
}

func parseTimeString(v string) (time.Time, error) {
	var err error
	for _, format := range timeFormats {
		var t time.Time
		t, err = time.Parse(format, v)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse time string %q: %w", v, err)
}

// NullTime is a custom type that handles both string and time.Time from SQLite
type NullTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner for NullTime
func (nt *NullTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	case time.Time:
		nt.Time, nt.Valid = v, true
		return nil
	case string:
		t, err := parseTimeString(v)
		if err != nil {
			return err
		}
		nt.Time, nt.Valid = t, true
		return nil
	case []byte:
		return nt.Scan(string(v))
	default:
		return fmt.Errorf("unsupported Scan type for NullTime: %T", value)
	}
}

// Value implements driver.Valuer for NullTime
func (nt NullTime) Value() (driver.Value, error) {
	if !nt.Valid {
		return nil, nil
	}
	return nt.Time, nil
}

// Message is an indexed Gmail message (metadata only). Bodies and the full
// header map are re-parsed from the saved file on demand.
type Message struct {
	ID              int64         `json:"id"`
	GmailID         string        `json:"gmailId"`
	FilePath        string        `json:"filePath"`
	ThreadID        string        `json:"threadId"`
	LabelIDs        string        `json:"-"`
	Snippet         string        `json:"snippet"`
	HistoryID       string        `json:"historyId"`
	InternalDate    sql.NullInt64 `json:"-"` // epoch milliseconds
	Subject         string        `json:"subject"`
	FromName        string        `json:"fromName"`
	FromAddress     string        `json:"fromAddress"`
	Recipients      string        `json:"recipients"`
	BodyPreview     string        `json:"-"` // First 10KB for FTS5 search only
	HasHTML         bool          `json:"hasHtml"`
	AttachmentCount int           `json:"attachmentCount"`
	InlineCount     int           `json:"inlineCount"`
	IndexedAt       NullTime      `json:"-"`
}

// Labels returns the Gmail label ids of the message
func (m *Message) Labels() []string {
	trimmed := strings.Trim(m.LabelIDs, ",")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, ",")
}

// Date returns the internal date, or zero time if unknown
func (m *Message) Date() time.Time {
	if m.InternalDate.Valid {
		return time.UnixMilli(m.InternalDate.Int64)
	}
	return time.Time{}
}

// MarshalJSON adds the decoded label list and internal date to the stored columns
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	var date *int64
	if m.InternalDate.Valid {
		date = &m.InternalDate.Int64
	}
	return json.Marshal(struct {
		plain
		LabelIDs     []string `json:"labelIds"`
		InternalDate *int64   `json:"internalDate"`
	}{plain(m), m.Labels(), date})
}

// joinLabels stores labels wrapped in commas so a single label matches ",LABEL,"
func joinLabels(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return "," + strings.Join(labels, ",") + ","
}

// Attachment is the metadata of an attachment or inline part
type Attachment struct {
	ID           int64  `json:"id"`
	MessageID    int64  `json:"messageId"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachmentId,omitempty"`
	Disposition  string `json:"disposition"`
}

// Attachment dispositions
const (
	DispositionAttachment = "attachment"
	DispositionInline     = "inline"
)

const messageColumns = `
	id, gmail_id, file_path, thread_id, label_ids, snippet, history_id,
	internal_date, subject, from_name, from_address, recipients, body_preview,
	has_html, attachment_count, inline_count, indexed_at`

// qualifiedColumns prefixes every message column with a table alias
func qualifiedColumns(alias string) string {
	cols := strings.Split(messageColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner, extra ...any) (*Message, error) {
	m := &Message{}
	var threadID, labelIDs, snippet, historyID, subject, fromName, fromAddress, recipients, preview sql.NullString
	dest := []any{
		&m.ID, &m.GmailID, &m.FilePath, &threadID, &labelIDs, &snippet, &historyID,
		&m.InternalDate, &subject, &fromName, &fromAddress, &recipients, &preview,
		&m.HasHTML, &m.AttachmentCount, &m.InlineCount, &m.IndexedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	m.ThreadID = threadID.String
	m.LabelIDs = labelIDs.String
	m.Snippet = snippet.String
	m.HistoryID = historyID.String
	m.Subject = subject.String
	m.FromName = fromName.String
	m.FromAddress = fromAddress.String
	m.Recipients = recipients.String
	m.BodyPreview = preview.String
	return m, nil
}

func (db *DB) queryMessages(query string, args ...any) ([]*Message, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

const insertMessageSQL = `
	INSERT INTO messages (
		gmail_id, file_path, thread_id, label_ids, snippet, history_id,
		internal_date, subject, from_name, from_address, recipients, body_preview,
		has_html, attachment_count, inline_count
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func messageArgs(m *Message) []any {
	return []any{
		m.GmailID, m.FilePath, m.ThreadID, m.LabelIDs, m.Snippet, m.HistoryID,
		m.InternalDate, m.Subject, m.FromName, m.FromAddress, m.Recipients, m.BodyPreview,
		m.HasHTML, m.AttachmentCount, m.InlineCount,
	}
}

// InsertMessage inserts a new message into the database (metadata only)
func (db *DB) InsertMessage(m *Message) (int64, error) {
	result, err := db.Exec(insertMessageSQL, messageArgs(m)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	return result.LastInsertId()
}

// InsertMessageWithAttachments inserts a message and its part metadata in a
// single transaction and returns the message row id
func (db *DB) InsertMessageWithAttachments(m *Message, attachments []*Attachment) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(insertMessageSQL, messageArgs(m)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message %s: %w", m.GmailID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	for _, att := range attachments {
		att.MessageID = id
		if _, err := tx.Exec(insertAttachmentSQL, attachmentArgs(att)...); err != nil {
			return 0, fmt.Errorf("failed to insert attachment %s: %w", att.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	m.ID = id
	return id, nil
}

// MessageExists checks if a message with the given Gmail id is already indexed
func (db *DB) MessageExists(gmailID string) (bool, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM messages WHERE gmail_id = ?)", gmailID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check message existence: %w", err)
	}
	return exists, nil
}

// FileIndexed checks if a message file has already been indexed
func (db *DB) FileIndexed(filePath string) (bool, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM messages WHERE file_path = ?)", filePath).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return exists, nil
}

// GetMessageByID retrieves a message by its row id
func (db *DB) GetMessageByID(id int64) (*Message, error) {
	row := db.QueryRow("SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// GetMessageByGmailID retrieves a message by its Gmail id
func (db *DB) GetMessageByGmailID(gmailID string) (*Message, error) {
	row := db.QueryRow("SELECT "+messageColumns+" FROM messages WHERE gmail_id = ?", gmailID)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// ListMessages retrieves the most recent messages with pagination
func (db *DB) ListMessages(limit, offset int) ([]*Message, error) {
	messages, err := db.queryMessages(`
		SELECT `+messageColumns+`
		FROM messages
		ORDER BY internal_date DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// CountMessages returns the total number of indexed messages
func (db *DB) CountMessages() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// DeleteMessage deletes a message and its attachment rows.
// The saved message file is NOT deleted from disk
func (db *DB) DeleteMessage(id int64) error {
	result, err := db.Exec("DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("message not found")
	}

	return nil
}

const insertAttachmentSQL = `
	INSERT INTO attachments (message_id, filename, mime_type, size, attachment_id, disposition)
	VALUES (?, ?, ?, ?, ?, ?)`

func attachmentArgs(att *Attachment) []any {
	return []any{att.MessageID, att.Filename, att.MimeType, att.Size, att.AttachmentID, att.Disposition}
}

// InsertAttachment inserts attachment metadata
func (db *DB) InsertAttachment(att *Attachment) (int64, error) {
	result, err := db.Exec(insertAttachmentSQL, attachmentArgs(att)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attachment: %w", err)
	}

	return result.LastInsertId()
}

// InsertAttachmentsBatch inserts multiple attachments in a single transaction
func (db *DB) InsertAttachmentsBatch(attachments []*Attachment) error {
	if len(attachments) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertAttachmentSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, att := range attachments {
		if _, err := stmt.Exec(attachmentArgs(att)...); err != nil {
			return fmt.Errorf("failed to insert attachment %s: %w", att.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetAttachmentsByMessageID retrieves the attachment and inline metadata of a
// message, in insertion order
func (db *DB) GetAttachmentsByMessageID(messageID int64) ([]*Attachment, error) {
	rows, err := db.Query(`
		SELECT id, message_id, filename, mime_type, size, attachment_id, disposition
		FROM attachments WHERE message_id = ?
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*Attachment
	for rows.Next() {
		att := &Attachment{}
		var mimeType, attachmentID sql.NullString
		var size sql.NullInt64
		err := rows.Scan(&att.ID, &att.MessageID, &att.Filename, &mimeType, &size, &attachmentID, &att.Disposition)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		att.MimeType = mimeType.String
		att.Size = size.Int64
		att.AttachmentID = attachmentID.String
		attachments = append(attachments, att)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachments, nil
}

// GetUniqueSenders retrieves unique sender addresses ordered by frequency
// (most messages sent first)
func (db *DB) GetUniqueSenders(limit int) ([]string, error) {
	rows, err := db.Query(`
		SELECT from_address, COUNT(*) as message_count
		FROM messages
		WHERE from_address != ''
		GROUP BY from_address
		ORDER BY message_count DESC, from_address ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique senders: %w", err)
	}
	defer rows.Close()

	var senders []string
	for rows.Next() {
		var sender string
		var count int
		if err := rows.Scan(&sender, &count); err != nil {
			return nil, fmt.Errorf("failed to scan sender: %w", err)
		}
		senders = append(senders, sender)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating senders: %w", err)
	}

	return senders, nil
}

// Stats holds database statistics
type Stats struct {
	TotalMessages   int       `json:"totalMessages"`
	Threads         int       `json:"threads"`
	WithAttachments int       `json:"withAttachments"`
	Attachments     int       `json:"attachments"`
	InlineParts     int       `json:"inlineParts"`
	LastIndexed     time.Time `json:"lastIndexed"`
}

// GetStats returns current database statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(DISTINCT NULLIF(thread_id, '')),
		       COALESCE(SUM(attachment_count > 0), 0)
		FROM messages
	`).Scan(&stats.TotalMessages, &stats.Threads, &stats.WithAttachments)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	err = db.QueryRow(`
		SELECT COALESCE(SUM(disposition = 'attachment'), 0),
		       COALESCE(SUM(disposition = 'inline'), 0)
		FROM attachments
	`).Scan(&stats.Attachments, &stats.InlineParts)
	if err != nil {
		return nil, fmt.Errorf("failed to count attachments: %w", err)
	}

	var lastIndexed sql.NullString
	err = db.QueryRow("SELECT MAX(indexed_at) FROM messages").Scan(&lastIndexed)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last indexed time: %w", err)
	}

	if lastIndexed.Valid {
		// Leave LastIndexed as zero time if the format is unknown
		if t, err := parseTimeString(lastIndexed.String); err == nil {
			stats.LastIndexed = t
		}
	}

	return stats, nil
}
