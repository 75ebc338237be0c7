package parser

import "strings"

// Header names consulted by the parser, lower-cased.
const (
	headerFrom        = "from"
	headerTo          = "to"
	headerCc          = "cc"
	headerBcc         = "bcc"
	headerDisposition = "content-disposition"
)

// IndexHeaders turns an ordered header list into a HeaderMap. Names are
// lower-cased and a later duplicate overwrites an earlier one.
func IndexHeaders(headers []Header) HeaderMap {
	indexed := make(HeaderMap, len(headers))
	for _, h := range headers {
		indexed[strings.ToLower(h.Name)] = h.Value
	}
	return indexed
}

// clone returns a shallow copy of the map.
func (h HeaderMap) clone() HeaderMap {
	out := make(HeaderMap, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
