package llm

import "fmt"

const (
	// MaxInlineResult is the size above which a tool result is middle-truncated
	// before being inlined into the conversation.
	MaxInlineResult = 10 * 1024

	// truncateHead and truncateTail are the byte counts kept on either side
	// of the elision marker.
	truncateHead = 4000
	truncateTail = 4000

	// MaxErrorLength bounds tool error strings placed in observations.
	MaxErrorLength = 500
)

// MiddleTruncate bounds s to roughly MaxInlineResult bytes by keeping the
// head and tail and replacing the middle with an elision marker. Strings at
// or under the limit pass through unchanged.
func MiddleTruncate(s string) string {
	if len(s) <= MaxInlineResult {
		return s
	}
	omitted := len(s) - truncateHead - truncateTail
	return s[:truncateHead] +
		fmt.Sprintf("\n... [%d bytes truncated] ...\n", omitted) +
		s[len(s)-truncateTail:]
}

// TruncateError bounds an error string to MaxErrorLength characters.
func TruncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength]
}
