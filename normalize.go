package xrcli

import "regexp"

// linefeedPattern is ordered so that the longest sequence wins: `\r\r\n` is a
// single line break, not two.
var linefeedPattern = regexp.MustCompile(`\r\r\n|\r\n|\n\r|\r`)

// NormalizeLinefeeds replaces every `\r\r\n`, `\r\n`, `\n\r` and lone `\r` in
// s with a single `\n`.
func NormalizeLinefeeds(s string) string {
	return linefeedPattern.ReplaceAllString(s, "\n")
}
