package checkin

import "strings"

const (
	memoryOpenTag  = "<MEMORY>"
	memoryCloseTag = "</MEMORY>"
)

// ExtractMemories pulls every well-formed <MEMORY>...</MEMORY> block out
// of a model response. It returns the trimmed inner texts and the
// response with those blocks removed. A dangling open tag without a
// matching close tag is treated as absent: nothing is extracted from it
// and the remaining text is left untouched.
func ExtractMemories(response string) ([]string, string) {
	var memories []string
	var cleaned strings.Builder

	rest := response
	for {
		openIdx := strings.Index(rest, memoryOpenTag)
		if openIdx < 0 {
			cleaned.WriteString(rest)
			break
		}
		innerStart := openIdx + len(memoryOpenTag)
		closeIdx := strings.Index(rest[innerStart:], memoryCloseTag)
		if closeIdx < 0 {
			cleaned.WriteString(rest)
			break
		}

		if inner := strings.TrimSpace(rest[innerStart : innerStart+closeIdx]); inner != "" {
			memories = append(memories, inner)
		}
		cleaned.WriteString(rest[:openIdx])
		rest = rest[innerStart+closeIdx+len(memoryCloseTag):]
	}

	return memories, strings.TrimSpace(cleaned.String())
}

// IsNullSentinel reports whether the cleaned response is the model's
// explicit "nothing worth saying" signal. A null response must never be
// forwarded to the user.
func IsNullSentinel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "null")
}
