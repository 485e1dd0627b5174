package edit

import (
	"regexp"
	"strings"
)

// Fragment is the code taken from a model reply. Fenced is false when no
// fence was found and the reply was used after stripping marker tokens.
type Fragment struct {
	Code   string `json:"code"`
	Fenced bool   `json:"fenced"`
}

var fencePattern = regexp.MustCompile("(?s)```(.*?)```")

// inlineTags are the language tags recognized on a fence with no line break.
var inlineTags = []string{"python3", "python", "starlark", "py"}

// markerTokens are removed by StripMarkers, longest first.
var markerTokens = []string{"```python3", "```python", "```starlark", "```py", "```"}

// ExtractFenced returns the trimmed body of the first fenced block.
func ExtractFenced(reply string) (string, bool) {
	m := fencePattern.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(fenceBody(m[1])), true
}

// fenceBody drops the info string of a fenced block. On a multi-line block
// that is the whole first line, whatever language it names; a one-line block
// loses only a known language tag.
func fenceBody(block string) string {
	if i := strings.IndexByte(block, '\n'); i >= 0 {
		return block[i+1:]
	}
	for _, tag := range inlineTags {
		if len(block) < len(tag) || !strings.EqualFold(block[:len(tag)], tag) {
			continue
		}
		rest := block[len(tag):]
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return rest
		}
	}
	return block
}

// StripMarkers removes fence tokens from the reply and trims the rest.
func StripMarkers(reply string) string {
	for _, tok := range markerTokens {
		reply = strings.ReplaceAll(reply, tok, "")
	}
	return strings.TrimSpace(reply)
}

// ExtractFragment tries the fenced form first and falls back to stripping.
func ExtractFragment(reply string) Fragment {
	if code, ok := ExtractFenced(reply); ok {
		return Fragment{Code: code, Fenced: true}
	}
	return Fragment{Code: StripMarkers(reply)}
}
