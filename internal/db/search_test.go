package db

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSearchMessages_SingleTerm tests searching with a single term
func TestSearchMessages_SingleTerm(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestMessages(t, db, []*Message{
		CreateTestMessage("Meeting Tomorrow", "sender1@test.com", "Let's meet tomorrow at 10am"),
		CreateTestMessage("Project Update", "sender2@test.com", "The project is going well"),
		CreateTestMessage("Meeting Notes", "sender3@test.com", "Here are the meeting notes from yesterday"),
	})

	results, err := db.SearchMessages("meeting", 10)

	require.NoError(t, err)
	assert.Len(t, results, 2, "Should find 2 messages with 'meeting'")

	for _, result := range results {
		hasMatch := strings.Contains(strings.ToLower(result.Message.Subject), "meeting") ||
			strings.Contains(strings.ToLower(result.Message.BodyPreview), "meeting")
		assert.True(t, hasMatch, "Result should contain 'meeting' in subject or body")
	}
}

// TestSearchMessages_MultipleTerms tests that every term must match
func TestSearchMessages_MultipleTerms(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestMessages(t, db, []*Message{
		CreateTestMessage("Meeting Tomorrow", "sender1@test.com", "Let's discuss the project tomorrow"),
		CreateTestMessage("Project Update", "sender2@test.com", "The project needs a review"),
		CreateTestMessage("Lunch Plans", "sender3@test.com", "Want to grab lunch tomorrow?"),
	})

	results, err := db.SearchMessages("project meeting", 10)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Meeting Tomorrow", results[0].Message.Subject)
}

// TestSearchMessages_PrefixMatching tests fuzzy search with partial words
func TestSearchMessages_PrefixMatching(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestMessages(t, db, []*Message{
		CreateTestMessage("Meeting Tomorrow", "sender1@test.com", "See you there"),
		CreateTestMessage("Project Discussion", "sender2@test.com", "We need to discuss the project"),
	})

	results, err := db.SearchMessages("meet", 10)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Meeting Tomorrow", results[0].Message.Subject)
}

// TestSearchMessages_Highlighting tests that body matches carry <mark> tags
func TestSearchMessages_Highlighting(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestMessages(t, db, []*Message{
		CreateTestMessage("Important", "sender@test.com",
			"This is a very important meeting that we need to attend. The meeting will discuss crucial topics."),
	})

	results, err := db.SearchMessages("meeting", 10)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Highlight, "<mark>")
	assert.Contains(t, results[0].Highlight, "</mark>")
	assert.Contains(t, strings.ToLower(results[0].Highlight), "meeting")
}

// TestSearchMessages_BySender tests that sender addresses are searchable
func TestSearchMessages_BySender(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestMessages(t, db, []*Message{
		CreateTestMessage("Hello", "alice@example.com", "hi"),
		CreateTestMessage("Howdy", "bob@example.com", "hey"),
	})

	results, err := db.SearchMessages("alice", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice@example.com", results[0].Message.FromAddress)
	assert.Equal(t, "hi", results[0].Highlight, "falls back to the Gmail snippet when the body has no match")
}

// TestSearchMessages_EmptyQuery tests that an empty query lists recent messages
func TestSearchMessages_EmptyQuery(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	InsertTestMessages(t, db, []*Message{
		CreateTestMessageWithDate("Old", "a@test.com", "old body", base),
		CreateTestMessageWithDate("New", "b@test.com", "new body", base.Add(time.Hour)),
	})

	results, err := db.SearchMessages("   ", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "New", results[0].Message.Subject)
	assert.Equal(t, "new body", results[0].Highlight)
}

// TestSearchMessages_SpecialCharacters tests that FTS5 syntax in input does not cause errors
func TestSearchMessages_SpecialCharacters(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestMessages(t, db, []*Message{
		CreateTestMessage("Quote Test", "sender@test.com", `He said "hello" to me`),
		CreateTestMessage("Dash Test", "sender@test.com", "self-hosted mail"),
	})

	queries := []string{`"hello"`, `hello"`, "self-hosted", "AND", "OR NOT", "subject:quote", "(test", "*"}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			_, err := db.SearchMessages(q, 10)
			assert.NoError(t, err)
		})
	}

	results, err := db.SearchMessages("self-hosted", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

// TestSearchMessages_Limit tests that the limit is honored
func TestSearchMessages_Limit(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	var msgs []*Message
	for i := 0; i < 15; i++ {
		msgs = append(msgs, CreateTestMessage(fmt.Sprintf("Newsletter %d", i), "news@test.com", "weekly newsletter"))
	}
	InsertTestMessages(t, db, msgs)

	results, err := db.SearchMessages("newsletter", 5)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

// TestSearchMessagesWithFilters tests sender, label and attachment filters
func TestSearchMessagesWithFilters(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	invoice := CreateTestMessage("Invoice March", "billing@shop.com", "your invoice")
	invoice.AttachmentCount = 1
	invoice.LabelIDs = joinLabels([]string{"INBOX", "CATEGORY_UPDATES"})
	receipt := CreateTestMessage("Invoice Receipt", "billing@shop.com", "paid invoice")
	receipt.LabelIDs = joinLabels([]string{"INBOX"})
	personal := CreateTestMessage("Invoice joke", "friend@mail.com", "invoice haha")
	personal.LabelIDs = joinLabels([]string{"INBOX_X"})
	InsertTestMessages(t, db, []*Message{invoice, receipt, personal})

	results, err := db.SearchMessagesWithFilters("invoice", SearchFilters{From: "Billing@"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = db.SearchMessagesWithFilters("invoice", SearchFilters{HasAttachments: true}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Invoice March", results[0].Message.Subject)

	results, err = db.SearchMessagesWithFilters("", SearchFilters{Label: "INBOX"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2, "label match is exact, INBOX_X is excluded")

	results, err = db.SearchMessagesWithFilters("invoice", SearchFilters{}, 10, 2)
	require.NoError(t, err)
	assert.Len(t, results, 1, "offset skips the first two")
}

func TestBuildMatchQuery(t *testing.T) {
	assert.Equal(t, `"john"* "doe"*`, buildMatchQuery("john  doe"))
	assert.Equal(t, `"say"* """hi"""*`, buildMatchQuery(`say "hi"`))
	assert.Equal(t, `"a-b"*`, buildMatchQuery("* a-b ()"))
	assert.Equal(t, "", buildMatchQuery("  "))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "exactly10!", truncateText("exactly10!", 10))
	assert.Equal(t, "trunc...", truncateText("truncate me", 5))
	assert.Equal(t, "ab...", truncateText("abé", 3), "never splits a rune")
}
