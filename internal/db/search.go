package db

import (
	"fmt"
	"strings"
	"unicode"
)

// SearchResult is a matching message with a highlighted excerpt
type SearchResult struct {
	Message   *Message `json:"message"`
	Highlight string   `json:"highlight"`
}

// SearchFilters narrows a search beyond the full-text query
type SearchFilters struct {
	From           string // substring of the sender address
	Label          string // exact Gmail label id
	HasAttachments bool
}

// buildMatchQuery turns user input into an FTS5 prefix query:
// `john doe` -> `"john"* "doe"*`. Quoting keeps FTS5 operators in the input
// literal; terms without any letter or digit are dropped.
func buildMatchQuery(query string) string {
	var fuzzyTerms []string
	for _, term := range strings.Fields(query) {
		if strings.IndexFunc(term, isWordRune) < 0 {
			continue
		}
		fuzzyTerms = append(fuzzyTerms, `"`+strings.ReplaceAll(term, `"`, `""`)+`"*`)
	}
	return strings.Join(fuzzyTerms, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a LIKE pattern with s matched literally
func likePattern(prefix, s, suffix string) string {
	return prefix + likeEscaper.Replace(s) + suffix
}

// SearchMessages performs a full-text search on messages using FTS5
func (db *DB) SearchMessages(query string, limit int) ([]*SearchResult, error) {
	return db.SearchMessagesWithFilters(query, SearchFilters{}, limit, 0)
}

// SearchMessagesWithFilters performs a search with additional filters and
// pagination. An empty query lists the most recent matching messages.
func (db *DB) SearchMessagesWithFilters(query string, filters SearchFilters, limit, offset int) ([]*SearchResult, error) {
	var conditions []string
	var args []any

	matchQuery := buildMatchQuery(query)
	if matchQuery != "" {
		conditions = append(conditions, "messages_fts MATCH ?")
		args = append(args, matchQuery)
	}

	if filters.From != "" {
		conditions = append(conditions, `m.from_address LIKE ? ESCAPE '\'`)
		args = append(args, likePattern("%", strings.ToLower(filters.From), "%"))
	}

	if filters.Label != "" {
		conditions = append(conditions, `m.label_ids LIKE ? ESCAPE '\'`)
		args = append(args, likePattern("%,", filters.Label, ",%"))
	}

	if filters.HasAttachments {
		conditions = append(conditions, "m.attachment_count > 0")
	}

	sqlQuery := "SELECT " + qualifiedColumns("m")
	if matchQuery != "" {
		sqlQuery += `, snippet(messages_fts, 5, '<mark>', '</mark>', '...', 32)
		FROM messages m
		JOIN messages_fts ON m.id = messages_fts.rowid`
	} else {
		sqlQuery += `, ''
		FROM messages m`
	}

	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	if matchQuery != "" {
		sqlQuery += " ORDER BY rank"
	} else {
		sqlQuery += " ORDER BY m.internal_date DESC, m.id DESC"
	}

	sqlQuery += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var highlight string
		m, err := scanMessage(rows, &highlight)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		// The body preview may not contain the match, or there was no query
		if !strings.Contains(highlight, "<mark>") {
			highlight = truncateText(m.Snippet, 200)
		}

		results = append(results, &SearchResult{Message: m, Highlight: highlight})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	return results, nil
}

// truncateText truncates text to maxLen bytes, on a rune boundary
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return truncateUTF8(text, maxLen) + "..."
}
