package db

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threadMessage(subject, from, threadID string, date time.Time) *Message {
	m := CreateTestMessageWithDate(subject, from, subject+" body", date)
	m.ThreadID = threadID
	return m
}

// TestListThread tests that a thread is returned oldest first
func TestListThread(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	base := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	undated := threadMessage("Re: Re: Plans", "c@test.com", "t-plans", base)
	undated.InternalDate = sql.NullInt64{}

	InsertTestMessages(t, db, []*Message{
		threadMessage("Re: Plans", "b@test.com", "t-plans", base.Add(time.Hour)),
		threadMessage("Plans", "a@test.com", "t-plans", base),
		undated,
		threadMessage("Unrelated", "x@test.com", "t-other", base),
	})

	thread, err := db.ListThread("t-plans")
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, "Plans", thread[0].Subject)
	assert.Equal(t, "Re: Plans", thread[1].Subject)
	assert.Equal(t, "Re: Re: Plans", thread[2].Subject, "undated messages come last")

	thread, err = db.ListThread("missing")
	require.NoError(t, err)
	assert.Empty(t, thread)

	thread, err = db.ListThread("")
	require.NoError(t, err)
	assert.Nil(t, thread)
}

// TestListThreads tests thread summaries ordered by latest activity
func TestListThreads(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	base := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	noThread := CreateTestMessageWithDate("Loose", "z@test.com", "x", base.Add(72*time.Hour))
	noThread.ThreadID = ""

	InsertTestMessages(t, db, []*Message{
		threadMessage("Plans", "a@test.com", "t-plans", base),
		threadMessage("Re: Plans", "b@test.com", "t-plans", base.Add(time.Hour)),
		threadMessage("Re: Re: Plans", "a@test.com", "t-plans", base.Add(2*time.Hour)),
		threadMessage("Newer topic", "c@test.com", "t-new", base.Add(24*time.Hour)),
		noThread,
	})

	threads, err := db.ListThreads(10, 0)
	require.NoError(t, err)
	require.Len(t, threads, 2, "messages without a thread id are not listed")

	assert.Equal(t, "t-new", threads[0].ThreadID)
	assert.Equal(t, 1, threads[0].MessageCount)

	plans := threads[1]
	assert.Equal(t, "t-plans", plans.ThreadID)
	assert.Equal(t, 3, plans.MessageCount)
	assert.Equal(t, "Plans", plans.Subject)
	require.NotNil(t, plans.LatestDate)
	assert.Equal(t, base.Add(2*time.Hour).UnixMilli(), *plans.LatestDate)
	assert.ElementsMatch(t, []string{"a@test.com", "b@test.com"}, strings.Split(plans.Participants, ","))

	threads, err = db.ListThreads(1, 1)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "t-plans", threads[0].ThreadID)
}
