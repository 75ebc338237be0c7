package db

import (
	"database/sql"
	"fmt"
)

// ThreadSummary describes a Gmail thread by its indexed messages
type ThreadSummary struct {
	ThreadID     string `json:"threadId"`
	MessageCount int    `json:"messageCount"`
	Subject      string `json:"subject"`     // subject of the first message
	LatestDate   *int64 `json:"latestDate"`  // epoch milliseconds of the newest message
	Participants string `json:"participants"` // distinct sender addresses
}

// ListThread retrieves every indexed message of a thread, oldest first.
// Messages without a known date sort last.
func (db *DB) ListThread(threadID string) ([]*Message, error) {
	if threadID == "" {
		return nil, nil
	}

	messages, err := db.queryMessages(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE thread_id = ?
		ORDER BY internal_date IS NULL, internal_date ASC, id ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list thread: %w", err)
	}
	return messages, nil
}

// ListThreads retrieves threads ordered by their newest message
func (db *DB) ListThreads(limit, offset int) ([]*ThreadSummary, error) {
	rows, err := db.Query(`
		SELECT t.thread_id, t.message_count, t.latest_date, t.participants,
		       (SELECT subject FROM messages
		        WHERE thread_id = t.thread_id
		        ORDER BY internal_date IS NULL, internal_date ASC, id ASC
		        LIMIT 1) AS subject
		FROM (
			SELECT thread_id,
			       COUNT(*) AS message_count,
			       MAX(internal_date) AS latest_date,
			       GROUP_CONCAT(DISTINCT from_address) AS participants
			FROM messages
			WHERE thread_id IS NOT NULL AND thread_id != ''
			GROUP BY thread_id
		) t
		ORDER BY t.latest_date DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []*ThreadSummary
	for rows.Next() {
		ts := &ThreadSummary{}
		var latest sql.NullInt64
		var participants, subject sql.NullString
		if err := rows.Scan(&ts.ThreadID, &ts.MessageCount, &latest, &participants, &subject); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		if latest.Valid {
			ts.LatestDate = &latest.Int64
		}
		ts.Participants = participants.String
		ts.Subject = subject.String
		threads = append(threads, ts)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}
