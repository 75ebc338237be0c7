package db

import (
	"database/sql"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/felo/gmail-message-parser/internal/parser"
)

// maxPreviewBytes bounds the body text kept for full-text search
const maxPreviewBytes = 10 * 1024

var stripTags = bluemonday.StrictPolicy()

// RecordFromParsed maps a parsed message to its index rows. filePath is the
// slash separated path of the saved resource relative to the messages root.
// The returned attachments have no MessageID yet.
func RecordFromParsed(filePath string, m *parser.ParsedMessage) (*Message, []*Attachment) {
	msg := &Message{
		GmailID:         m.ID,
		FilePath:        filePath,
		ThreadID:        m.ThreadID,
		LabelIDs:        joinLabels(m.LabelIDs),
		Snippet:         m.Snippet,
		HistoryID:       m.HistoryID,
		HasHTML:         m.TextHTML != nil,
		AttachmentCount: len(m.Attachments),
		InlineCount:     len(m.Inline),
		BodyPreview:     bodyPreview(m),
	}

	if m.InternalDate != nil && !m.InternalDate.IsNaN() {
		msg.InternalDate = sql.NullInt64{Int64: m.InternalDate.Int64(), Valid: true}
	}

	if h := m.Headers; h != nil {
		msg.Subject = h.Get("subject")
		if h.Normalized() {
			msg.FromName = h.From.Name
			msg.FromAddress = h.From.Address
			msg.Recipients = joinAddresses(h.To, h.Cc, h.Bcc)
		} else {
			// Unparsed: keep the raw values searchable
			msg.FromName = h.Get("from")
			msg.Recipients = strings.Join(nonEmpty(h.Get("to"), h.Get("cc"), h.Get("bcc")), ", ")
		}
	}

	attachments := make([]*Attachment, 0, len(m.Attachments)+len(m.Inline))
	for _, a := range m.Attachments {
		attachments = append(attachments, attachmentRow(a, DispositionAttachment))
	}
	for _, a := range m.Inline {
		attachments = append(attachments, attachmentRow(a, DispositionInline))
	}

	return msg, attachments
}

func attachmentRow(a parser.AttachmentMeta, disposition string) *Attachment {
	return &Attachment{
		Filename:     a.Filename,
		MimeType:     a.MimeType,
		Size:         a.Size,
		AttachmentID: a.AttachmentID,
		Disposition:  disposition,
	}
}

func joinAddresses(lists ...[]parser.Address) string {
	var addrs []string
	for _, list := range lists {
		for _, a := range list {
			if a.Address != "" {
				addrs = append(addrs, a.Address)
			}
		}
	}
	return strings.Join(addrs, ", ")
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// bodyPreview prefers the plain body and falls back to the HTML body with
// markup removed
func bodyPreview(m *parser.ParsedMessage) string {
	text := m.Plain()
	if text == "" && m.TextHTML != nil {
		text = html.UnescapeString(stripTags.Sanitize(*m.TextHTML))
		text = strings.Join(strings.Fields(text), " ")
	}
	return truncateUTF8(text, maxPreviewBytes)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
