package plotapi

import (
	"net/url"
	"strings"
)

// QueryEscape leaves !'()* escaped, encodeURIComponent does not, and spaces
// must be %20 rather than +. A literal + in the input is already %2B.
var componentFixer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent percent-encodes s the way browsers' encodeURIComponent does,
// so the same string is valid both as a path segment and as a query value.
func EncodeComponent(s string) string {
	return componentFixer.Replace(url.QueryEscape(s))
}

// DecodeComponent reverses EncodeComponent.
func DecodeComponent(s string) (string, error) {
	return url.PathUnescape(s)
}
