package parser

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// urlSafeReplacer maps the URL-safe alphabet back to the standard one and
// drops the line breaks some producers insert.
var urlSafeReplacer = strings.NewReplacer(
	"-", "+",
	"_", "/",
	"\r", "",
	"\n", "",
	"\t", "",
	" ", "",
)

// Decode converts base64url body data to text. It never fails: empty or
// corrupt input yields "".
func Decode(data string) string {
	text, err := DecodeStrict(data)
	if err != nil {
		return ""
	}
	return text
}

// DecodeStrict converts base64url body data to text, reporting corrupt input.
// Padding is optional. Invalid UTF-8 sequences are replaced with U+FFFD.
func DecodeStrict(data string) (string, error) {
	if data == "" {
		return "", nil
	}

	std := strings.TrimRight(urlSafeReplacer.Replace(data), "=")
	raw, err := base64.RawStdEncoding.DecodeString(std)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 data: %w", err)
	}

	text, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode utf-8 text: %w", err)
	}
	return string(text), nil
}
