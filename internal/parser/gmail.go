package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"google.golang.org/api/gmail/v1"
)

// FromGmail converts a message returned by the Gmail API client into the raw
// input shape. The typed numeric fields of the client are rendered back to
// the decimal strings of the wire format.
func FromGmail(m *gmail.Message) *RawMessage {
	if m == nil {
		return nil
	}

	raw := &RawMessage{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		LabelIDs: m.LabelIds,
		Snippet:  m.Snippet,
		Payload:  fromGmailPart(m.Payload),
	}
	if m.HistoryId != 0 {
		raw.HistoryID = strconv.FormatUint(m.HistoryId, 10)
	}
	if m.InternalDate != 0 {
		date := strconv.FormatInt(m.InternalDate, 10)
		raw.InternalDate = &date
	}
	return raw
}

func fromGmailPart(p *gmail.MessagePart) *MimeNode {
	if p == nil {
		return nil
	}

	node := &MimeNode{
		PartID:   p.PartId,
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	for _, h := range p.Headers {
		if h == nil {
			continue
		}
		node.Headers = append(node.Headers, Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		node.Body = &NodeBody{
			AttachmentID: p.Body.AttachmentId,
			Size:         p.Body.Size,
			Data:         p.Body.Data,
		}
	}
	for _, child := range p.Parts {
		if c := fromGmailPart(child); c != nil {
			node.Parts = append(node.Parts, c)
		}
	}
	return node
}

// ParseGmail parses a message returned by the Gmail API client.
func (p *Parser) ParseGmail(m *gmail.Message) (*ParsedMessage, error) {
	return p.Parse(FromGmail(m))
}

// ParseJSON decodes a Gmail message resource and parses it.
func (p *Parser) ParseJSON(r io.Reader) (*ParsedMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("failed to decode message: expected a JSON object")
	}

	var raw RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return p.Parse(&raw)
}

// ParseFile parses a Gmail message resource saved as JSON.
func (p *Parser) ParseFile(filePath string) (*ParsedMessage, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return p.ParseJSON(f)
}

// ParseJSON decodes and parses with the default parser.
func ParseJSON(r io.Reader) (*ParsedMessage, error) {
	return defaultParser.ParseJSON(r)
}

// ParseFile parses a JSON file with the default parser.
func ParseFile(filePath string) (*ParsedMessage, error) {
	return defaultParser.ParseFile(filePath)
}
