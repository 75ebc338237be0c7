package indexer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/gmail-message-parser/internal/db"
	"github.com/felo/gmail-message-parser/internal/parser"
)

// writeMessage saves a single part Gmail message resource under dir
func writeMessage(t *testing.T, dir, name, id, threadID, subject, from, body string, date int64) {
	t.Helper()

	internalDate := strconv.FormatInt(date, 10)
	raw := parser.RawMessage{
		ID:           id,
		ThreadID:     threadID,
		LabelIDs:     []string{"INBOX"},
		Snippet:      body,
		HistoryID:    "100",
		InternalDate: &internalDate,
		Payload: &parser.MimeNode{
			MimeType: "text/plain",
			Headers: []parser.Header{
				{Name: "From", Value: from},
				{Name: "To", Value: "me@example.com"},
				{Name: "Subject", Value: subject},
			},
			Body: &parser.NodeBody{
				Size: int64(len(body)),
				Data: base64.URLEncoding.EncodeToString([]byte(body)),
			},
		},
	}

	data, err := json.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func copyFixture(t *testing.T, name, dst string) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("..", "parser", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))
	require.NoError(t, os.WriteFile(dst, data, 0644))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// TestEndToEndWorkflow tests the complete workflow from scanning to retrieval
func TestEndToEndWorkflow(t *testing.T) {
	tempDir := t.TempDir()
	copyFixture(t, "multipart_attachment.json", filepath.Join(tempDir, "inbox", "report.json"))
	copyFixture(t, "inline_image.json", filepath.Join(tempDir, "inbox", "logo.json"))

	testDB := db.SetupTestDB(t)
	defer db.CleanupTestDB(t, testDB)

	count, err := testDB.CountMessages()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "Database should start empty")

	idx := NewIndexer(testDB, tempDir, false).WithLogger(quietLogger())
	result, err := idx.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalFound)
	assert.Equal(t, 2, result.NewIndexed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Skipped, "Should skip no files (first run)")

	msg, err := testDB.GetMessageByGmailID("18c2f0a1b2c3d4e5")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "inbox/report.json", msg.FilePath)
	assert.Equal(t, "Quarterly report", msg.Subject)
	assert.Equal(t, "john.doe@example.com", msg.FromAddress)
	assert.Equal(t, 1, msg.AttachmentCount)

	attachments, err := testDB.GetAttachmentsByMessageID(msg.ID)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, "report.pdf", attachments[0].Filename)

	thread, err := testDB.ListThread("18c2f0a1b2c3d4e5")
	require.NoError(t, err)
	assert.Len(t, thread, 2, "both fixtures share a thread")

	results, err := testDB.SearchMessages("report", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Highlight, "<mark>")

	lastIndexed, err := testDB.GetSetting(SettingLastIndexed)
	require.NoError(t, err)
	assert.NotEmpty(t, lastIndexed)

	// Re-indexing skips existing files
	result, err = idx.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewIndexed, "Should not index duplicates")
	assert.Equal(t, 2, result.Skipped)

	count, err = testDB.CountMessages()
	require.NoError(t, err)
	assert.Equal(t, 2, count, "Count should remain same after re-index")
}

// TestIndexAll_FailuresAndDuplicates tests the per-file outcomes
func TestIndexAll_FailuresAndDuplicates(t *testing.T) {
	tempDir := t.TempDir()
	writeMessage(t, tempDir, "a.json", "m1", "t1", "First", "one@test.com", "first body", 1704103200000)
	writeMessage(t, tempDir, "copy-of-a.json", "m1", "t1", "First", "one@test.com", "first body", 1704103200000)
	writeMessage(t, tempDir, "b.json", "m2", "t2", "Second", "two@test.com", "second body", 1704106800000)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "broken.json"), []byte("[1, 2"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "no-id.json"), []byte(`{"threadId":"x"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("ignored"), 0644))

	testDB := db.SetupTestDB(t)
	defer db.CleanupTestDB(t, testDB)

	idx := NewIndexer(testDB, tempDir, true).WithConcurrency(3).WithLogger(quietLogger())
	result, err := idx.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalFound)
	assert.Equal(t, 2, result.NewIndexed)
	assert.Equal(t, 1, result.Skipped, "the copy has the same Gmail id")
	assert.Equal(t, 2, result.Failed)
	assert.ElementsMatch(t, []string{"broken.json", "no-id.json"}, result.FailedFiles)

	count, err := testDB.CountMessages()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// TestIndexWithProgress tests that progress is reported once per file
func TestIndexWithProgress(t *testing.T) {
	tempDir := t.TempDir()
	for i := 0; i < 7; i++ {
		id := "m" + strconv.Itoa(i)
		writeMessage(t, tempDir, "batch/"+id+".json", id, "t", "Batch "+id, "batch@test.com", "body "+id, int64(1704103200000+i))
	}

	testDB := db.SetupTestDB(t)
	defer db.CleanupTestDB(t, testDB)

	var calls []int
	idx := NewIndexer(testDB, tempDir, false).WithConcurrency(2).WithLogger(quietLogger())
	result, err := idx.IndexWithProgress(context.Background(), func(current, total int, filePath string) {
		assert.Equal(t, 7, total)
		assert.NotEmpty(t, filePath)
		calls = append(calls, current)
	})
	require.NoError(t, err)

	assert.Equal(t, 7, result.NewIndexed)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, calls)
}

// TestIndexAll_Cancelled tests that a cancelled context dispatches nothing
func TestIndexAll_Cancelled(t *testing.T) {
	tempDir := t.TempDir()
	writeMessage(t, tempDir, "a.json", "m1", "t1", "First", "one@test.com", "body", 1704103200000)

	testDB := db.SetupTestDB(t)
	defer db.CleanupTestDB(t, testDB)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewIndexer(testDB, tempDir, false).WithLogger(quietLogger()).IndexAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.Equal(t, 1, result.TotalFound)
	assert.Equal(t, 0, result.NewIndexed)

	lastIndexed, err := testDB.GetSetting(SettingLastIndexed)
	require.NoError(t, err)
	assert.Empty(t, lastIndexed, "an interrupted run is not recorded")
}

func TestIndexAll_MissingDirectory(t *testing.T) {
	testDB := db.SetupTestDB(t)
	defer db.CleanupTestDB(t, testDB)

	_, err := NewIndexer(testDB, filepath.Join(t.TempDir(), "absent"), false).IndexAll(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan for files")
}

// TestWithParser tests that a custom parser is used for every file
func TestWithParser(t *testing.T) {
	tempDir := t.TempDir()
	writeMessage(t, tempDir, "a.json", "m1", "t1", "First", "ignored@test.com", "body", 1704103200000)

	testDB := db.SetupTestDB(t)
	defer db.CleanupTestDB(t, testDB)

	p := parser.New(parser.WithAddressParser(func(string) []parser.Address {
		return []parser.Address{{Name: "Fixed", Address: "Fixed@Test.com"}}
	}))

	_, err := NewIndexer(testDB, tempDir, false).WithParser(p).WithLogger(quietLogger()).IndexAll(context.Background())
	require.NoError(t, err)

	msg, err := testDB.GetMessageByGmailID("m1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "fixed@test.com", msg.FromAddress)
}
