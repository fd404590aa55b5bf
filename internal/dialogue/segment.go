package dialogue

import "strings"

// breakMarker is an explicit segment break the model may emit mid-sentence.
const breakMarker = '•'

// segmenter accumulates streamed tokens and splits them into speakable
// segments at sentence boundaries (terminal punctuation followed by
// whitespace) or at the explicit break marker.
type segmenter struct {
	buf strings.Builder
}

// Add appends a token and returns any segments completed by it, in order.
func (s *segmenter) Add(token string) []string {
	s.buf.WriteString(token)
	complete, remainder := splitSegments(s.buf.String())
	if len(complete) == 0 {
		return nil
	}
	s.buf.Reset()
	s.buf.WriteString(remainder)
	return complete
}

// Flush returns the remaining partial segment, if any.
func (s *segmenter) Flush() string {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return text
}

var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}

// splitSegments slices text at every boundary, returning the completed
// segments (trimmed, break markers removed) and the unfinished remainder.
func splitSegments(text string) ([]string, string) {
	var complete []string
	start := 0
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		if runes[i] == breakMarker {
			if seg := strings.TrimSpace(string(runes[start:i])); seg != "" {
				complete = append(complete, seg)
			}
			start = i + 1
			continue
		}
		if runes[i] < 128 && sentenceEnders[byte(runes[i])] &&
			i+1 < len(runes) && isWordBoundary(runes[i+1]) {
			if seg := strings.TrimSpace(string(runes[start : i+1])); seg != "" {
				complete = append(complete, seg)
			}
			start = i + 1
		}
	}

	return complete, string(runes[start:])
}

func isWordBoundary(ch rune) bool {
	return ch == ' ' || ch == '\n' || ch == '\t'
}
