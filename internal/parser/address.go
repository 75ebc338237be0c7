package parser

import (
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Register additional charsets seen in encoded display names
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// AddressParser splits a header value into mailbox tokens. Implementations
// should be tolerant and return whatever tokens they can recover.
type AddressParser func(value string) []Address

// ParseAddressList is the default AddressParser. It parses RFC 5322 address
// lists, decoding RFC 2047 display names, and falls back to a best-effort
// split when the strict parse fails.
func ParseAddressList(value string) []Address {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	list, err := mail.ParseAddressList(value)
	if err != nil {
		return splitAddressList(value)
	}

	out := make([]Address, 0, len(list))
	for _, a := range list {
		out = append(out, Address{Name: a.Name, Address: a.Address})
	}
	return out
}

// splitAddressList splits on commas outside quotes and angle brackets and
// extracts what it can from each token.
func splitAddressList(value string) []Address {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		angle   bool
	)
	for _, r := range value {
		switch {
		case r == '"':
			quoted = !quoted
		case r == '<' && !quoted:
			angle = true
		case r == '>' && !quoted:
			angle = false
		case (r == ',' || r == ';') && !quoted && !angle:
			tokens = append(tokens, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	tokens = append(tokens, current.String())

	out := make([]Address, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if a, err := mail.ParseAddress(tok); err == nil {
			out = append(out, Address{Name: a.Name, Address: a.Address})
			continue
		}
		out = append(out, extractAddress(tok))
	}
	return out
}

// extractAddress pulls an address out of a token net/mail rejected.
func extractAddress(tok string) Address {
	// Group label, e.g. "team: a@example.com"
	if i := strings.Index(tok, ":"); i >= 0 && !strings.Contains(tok[:i], "<") && !strings.Contains(tok[:i], "\"") {
		if rest := strings.TrimSpace(tok[i+1:]); rest != "" {
			tok = rest
		}
	}

	if open := strings.LastIndex(tok, "<"); open >= 0 {
		end := strings.LastIndex(tok, ">")
		if end < open {
			end = len(tok)
		}
		return Address{
			Name:    strings.Trim(strings.TrimSpace(tok[:open]), `"' `),
			Address: strings.TrimSpace(tok[open+1 : end]),
		}
	}
	if strings.Contains(tok, "@") {
		return Address{Address: strings.Trim(tok, `"' `)}
	}
	return Address{Name: strings.Trim(tok, `"' `)}
}

// NormalizeAddresses parses the from, to, cc and bcc headers of h. It never
// modifies h. Headers without a from entry are passed through unparsed.
//
// When from yields no mailbox, the pass-through headers are returned together
// with an *InvalidHeaderError.
func (p *Parser) NormalizeAddresses(h HeaderMap) (*ParsedHeaders, error) {
	if h == nil {
		return &ParsedHeaders{Fields: HeaderMap{}}, nil
	}

	out := &ParsedHeaders{Fields: h.clone()}
	fromValue := h[headerFrom]
	if fromValue == "" {
		return out, nil
	}

	tokens := p.addrs(fromValue)
	if len(tokens) == 0 {
		return out, &InvalidHeaderError{Header: headerFrom, Value: fromValue}
	}

	from := Address{
		Name:    tokens[0].Name,
		Address: strings.ToLower(tokens[0].Address),
	}
	if strings.TrimSpace(from.Name) == "" {
		from.Name = from.Address
	}

	out.From = &from
	out.To = p.recipients(h[headerTo])
	out.Cc = p.recipients(h[headerCc])
	out.Bcc = p.recipients(h[headerBcc])
	return out, nil
}

// NormalizeAddresses parses address headers with the default parser.
func NormalizeAddresses(h HeaderMap) (*ParsedHeaders, error) {
	return defaultParser.NormalizeAddresses(h)
}

func (p *Parser) recipients(value string) []Address {
	tokens := p.addrs(value)
	out := make([]Address, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, Address{Name: t.Name, Address: strings.ToLower(t.Address)})
	}
	return out
}
