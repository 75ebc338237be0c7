package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// RawMessage is a Gmail message resource as returned by users.messages.get
// with format=full.
type RawMessage struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"threadId"`
	LabelIDs     []string  `json:"labelIds,omitempty"`
	Snippet      string    `json:"snippet"`
	HistoryID    string    `json:"historyId"`
	InternalDate *string   `json:"internalDate,omitempty"`
	Payload      *MimeNode `json:"payload,omitempty"`
}

// MimeNode is one part of the message body tree. A node with Parts is a
// multipart container.
type MimeNode struct {
	PartID   string      `json:"partId,omitempty"`
	MimeType string      `json:"mimeType"`
	Filename string      `json:"filename,omitempty"`
	Headers  []Header    `json:"headers,omitempty"`
	Body     *NodeBody   `json:"body,omitempty"`
	Parts    []*MimeNode `json:"parts,omitempty"`
}

// Header is a single raw header record.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NodeBody holds the base64url encoded content of a part, or a reference to
// an attachment stored separately.
type NodeBody struct {
	AttachmentID string `json:"attachmentId,omitempty"`
	Size         int64  `json:"size"`
	Data         string `json:"data,omitempty"`
}

// HeaderMap maps lower-cased header names to their raw values.
type HeaderMap map[string]string

// Address is a parsed mailbox. Address is always lower-cased.
type Address struct {
	Name    string
	Address string
}

// MarshalJSON encodes an empty address as null.
func (a Address) MarshalJSON() ([]byte, error) {
	var addr *string
	if a.Address != "" {
		addr = &a.Address
	}
	return json.Marshal(struct {
		Name    string  `json:"name"`
		Address *string `json:"address"`
	}{a.Name, addr})
}

// ParsedHeaders is the top-level header map after address normalization.
//
// Fields always holds the raw indexed values, including the original from,
// to, cc and bcc strings. From is nil when the headers had no from entry (or
// it could not be parsed); in that case the headers encode as the raw map.
type ParsedHeaders struct {
	Fields HeaderMap
	From   *Address
	To     []Address
	Cc     []Address
	Bcc    []Address
}

// Get returns the raw value of a header, case-insensitively.
func (h *ParsedHeaders) Get(name string) string {
	if h == nil {
		return ""
	}
	return h.Fields[strings.ToLower(name)]
}

// Normalized reports whether the address fields were parsed.
func (h *ParsedHeaders) Normalized() bool {
	return h != nil && h.From != nil
}

// MarshalJSON flattens the headers into a single object, replacing the address
// headers by their parsed records when normalized.
func (h ParsedHeaders) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Fields)+4)
	for k, v := range h.Fields {
		out[k] = v
	}
	if h.From == nil {
		return json.Marshal(out)
	}
	out["from"] = h.From
	out["to"] = nonNil(h.To)
	out["cc"] = nonNil(h.Cc)
	out["bcc"] = nonNil(h.Bcc)
	return json.Marshal(out)
}

func nonNil(list []Address) []Address {
	if list == nil {
		return []Address{}
	}
	return list
}

// AttachmentMeta describes an attachment or inline asset. The content itself
// is not part of the message resource and must be fetched by AttachmentID.
type AttachmentMeta struct {
	Filename     string    `json:"filename"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	AttachmentID string    `json:"attachmentId,omitempty"`
	Headers      HeaderMap `json:"headers"`
}

// ParsedMessage is the flat record produced by Parse.
type ParsedMessage struct {
	ID           string           `json:"id"`
	ThreadID     string           `json:"threadId"`
	LabelIDs     []string         `json:"labelIds"`
	Snippet      string           `json:"snippet"`
	HistoryID    string           `json:"historyId"`
	InternalDate *EpochMillis     `json:"internalDate,omitempty"`
	Headers      *ParsedHeaders   `json:"headers,omitempty"`
	TextHTML     *string          `json:"textHtml,omitempty"`
	TextPlain    *string          `json:"textPlain,omitempty"`
	Attachments  []AttachmentMeta `json:"attachments,omitempty"`
	Inline       []AttachmentMeta `json:"inline,omitempty"`

	// PartErrors holds recoverable failures hit during the walk. Each one
	// caused a single field or part to be skipped.
	PartErrors []error `json:"-"`
}

// HTML returns the decoded HTML body, or "" when absent.
func (m *ParsedMessage) HTML() string {
	if m.TextHTML == nil {
		return ""
	}
	return *m.TextHTML
}

// Plain returns the decoded plain text body, or "" when absent.
func (m *ParsedMessage) Plain() string {
	if m.TextPlain == nil {
		return ""
	}
	return *m.TextPlain
}

// EpochMillis is a message internalDate in milliseconds since the Unix epoch.
// A non-numeric source value yields NaN.
type EpochMillis struct {
	ms  int64
	nan bool
}

// ParseEpochMillis parses a base 10 millisecond timestamp.
func ParseEpochMillis(s string) EpochMillis {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return EpochMillis{nan: true}
	}
	return EpochMillis{ms: ms}
}

// NewEpochMillis wraps a known millisecond value.
func NewEpochMillis(ms int64) EpochMillis {
	return EpochMillis{ms: ms}
}

// IsNaN reports whether the source value was not a number.
func (e EpochMillis) IsNaN() bool { return e.nan }

// Int64 returns the millisecond value, or 0 for NaN.
func (e EpochMillis) Int64() int64 { return e.ms }

// Time converts to a time.Time. NaN converts to the zero time.
func (e EpochMillis) Time() time.Time {
	if e.nan {
		return time.Time{}
	}
	return time.UnixMilli(e.ms)
}

// MarshalJSON encodes the value as a number, or null for NaN.
func (e EpochMillis) MarshalJSON() ([]byte, error) {
	if e.nan {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(e.ms, 10)), nil
}
