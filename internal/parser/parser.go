// Package parser flattens Gmail API message resources into a record with
// normalized headers, decoded text bodies and attachment metadata.
package parser

import (
	"log/slog"
	"strings"
)

// Parser converts RawMessage values into ParsedMessage records. A Parser holds
// no per-message state and is safe for concurrent use.
type Parser struct {
	addrs  AddressParser
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithAddressParser replaces the address tokenizer.
func WithAddressParser(ap AddressParser) Option {
	return func(p *Parser) {
		if ap != nil {
			p.addrs = ap
		}
	}
}

// WithLogger sets the logger used for skipped parts.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{addrs: ParseAddressList}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// Parse parses raw with the default parser.
func Parse(raw *RawMessage) (*ParsedMessage, error) {
	return defaultParser.Parse(raw)
}

func (p *Parser) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

// Parse builds the flat record for raw. Missing payload, headers, bodies or
// parts shrink the result but are not errors. The only fatal error is
// ErrMissingID; failures confined to one part are recorded in PartErrors.
func (p *Parser) Parse(raw *RawMessage) (*ParsedMessage, error) {
	if raw == nil || raw.ID == "" {
		return nil, ErrMissingID
	}

	result := &ParsedMessage{
		ID:        raw.ID,
		ThreadID:  raw.ThreadID,
		LabelIDs:  raw.LabelIDs,
		Snippet:   raw.Snippet,
		HistoryID: raw.HistoryID,
	}
	if raw.InternalDate != nil && *raw.InternalDate != "" {
		date := ParseEpochMillis(*raw.InternalDate)
		result.InternalDate = &date
	}

	payload := raw.Payload
	if payload == nil {
		return result, nil
	}

	rootHeaders := IndexHeaders(payload.Headers)
	headers, err := p.NormalizeAddresses(rootHeaders)
	if err != nil {
		p.log().Warn("leaving address headers unparsed",
			"message_id", raw.ID,
			"error", err,
		)
		result.PartErrors = append(result.PartErrors, err)
	}
	result.Headers = headers

	p.walk(result, payload, rootHeaders)
	return result, nil
}

// scopedNode pairs a queued node with the headers its classification uses.
type scopedNode struct {
	node    *MimeNode
	headers HeaderMap
}

// walk visits the tree breadth first. The root is classified with the
// top-level headers; every descendant with its own.
func (p *Parser) walk(result *ParsedMessage, root *MimeNode, rootHeaders HeaderMap) {
	queue := []scopedNode{{node: root, headers: rootHeaders}}

	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		queue[i] = scopedNode{}

		for _, child := range cur.node.Parts {
			if child == nil {
				continue
			}
			queue = append(queue, scopedNode{node: child, headers: IndexHeaders(child.Headers)})
		}

		if cur.node.Body == nil {
			continue
		}
		p.visit(result, cur.node, cur.headers)
	}
}

// partKind is the outcome of classifying a body-bearing part.
type partKind int

const (
	kindNone partKind = iota
	kindHTML
	kindPlain
	kindAttachment
	kindInline
)

// classify applies the routing table. Attachment disposition wins over the
// text types, so a text part sent as a file is kept as an attachment.
func classify(mimeType, disposition string) partKind {
	isAttachment := strings.Contains(disposition, "attachment")
	switch {
	case strings.Contains(mimeType, "text/html") && !isAttachment:
		return kindHTML
	case strings.Contains(mimeType, "text/plain") && !isAttachment:
		return kindPlain
	case isAttachment:
		return kindAttachment
	case strings.Contains(disposition, "inline"):
		return kindInline
	default:
		return kindNone
	}
}

func (p *Parser) visit(result *ParsedMessage, node *MimeNode, headers HeaderMap) {
	disposition := headers[headerDisposition]
	kind := classify(node.MimeType, disposition)

	switch kind {
	case kindHTML, kindPlain:
		text, err := DecodeStrict(node.Body.Data)
		if err != nil {
			p.recordPartError(result, &BodyDecodeError{
				MimeType: node.MimeType,
				Filename: node.Filename,
				Err:      err,
			})
			return
		}
		if kind == kindHTML {
			result.TextHTML = &text
		} else {
			result.TextPlain = &text
		}

	case kindAttachment:
		result.Attachments = append(result.Attachments, attachmentMeta(node))

	case kindInline:
		result.Inline = append(result.Inline, attachmentMeta(node))

	default:
		p.log().Debug("skipping unclassified part",
			"message_id", result.ID,
			"mime_type", node.MimeType,
			"disposition", disposition,
		)
	}
}

func (p *Parser) recordPartError(result *ParsedMessage, err *BodyDecodeError) {
	p.log().Warn("skipping undecodable part",
		"message_id", result.ID,
		"mime_type", err.MimeType,
		"filename", err.Filename,
		"error", err.Err,
	)
	result.PartErrors = append(result.PartErrors, err)
}

func attachmentMeta(node *MimeNode) AttachmentMeta {
	return AttachmentMeta{
		Filename:     node.Filename,
		MimeType:     node.MimeType,
		Size:         node.Body.Size,
		AttachmentID: node.Body.AttachmentID,
		Headers:      IndexHeaders(node.Headers),
	}
}
