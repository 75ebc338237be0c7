package db

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close test database: %v", err)
	}
}

// CreateTestMessage creates a test message with default values. The Gmail id
// and file path are derived from the subject.
func CreateTestMessage(subject, from, body string) *Message {
	slug := strings.ReplaceAll(strings.ToLower(subject), " ", "-")
	return &Message{
		GmailID:      "gm-" + slug,
		FilePath:     fmt.Sprintf("test/%s.json", slug),
		ThreadID:     "th-" + slug,
		LabelIDs:     joinLabels([]string{"INBOX"}),
		Snippet:      truncateText(body, 100),
		HistoryID:    "1",
		InternalDate: sql.NullInt64{Int64: time.Now().UnixMilli(), Valid: true},
		Subject:      subject,
		FromName:     "Test Sender",
		FromAddress:  from,
		Recipients:   "recipient@test.com",
		BodyPreview:  body,
	}
}

// CreateTestMessageWithDate creates a test message with a specific internal date
func CreateTestMessageWithDate(subject, from, body string, date time.Time) *Message {
	m := CreateTestMessage(subject, from, body)
	m.InternalDate = sql.NullInt64{Int64: date.UnixMilli(), Valid: true}
	return m
}

// InsertTestMessages inserts multiple test messages and returns them
func InsertTestMessages(t *testing.T, db *DB, messages []*Message) []*Message {
	t.Helper()

	for i, m := range messages {
		id, err := db.InsertMessage(m)
		if err != nil {
			t.Fatalf("Failed to insert test message %d: %v", i, err)
		}
		messages[i].ID = id
	}

	return messages
}
