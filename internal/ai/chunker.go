package ai

const (
	// MaxDataChars is the largest serialized dataset placed in a prompt.
	MaxDataChars = 100000
	// TruncationMarker is appended when data was cut to MaxDataChars.
	TruncationMarker = "\n... (truncated)"
)

// Truncate keeps the first limit characters of text and appends the marker
// when anything was dropped. Characters are runes, so multi-byte text is never
// split mid-character.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		limit = MaxDataChars
	}
	if len(text) <= limit {
		return text, false
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i] + TruncationMarker, true
		}
		n++
	}
	return text, false
}
