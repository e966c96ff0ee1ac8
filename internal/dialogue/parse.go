package dialogue

import "strings"

const (
	questionMarker = "QUESTION:"
	examplesMarker = "EXAMPLES:"
	maxExamples    = 4
)

// ParseQuestion extracts a question and up to four example answers from free
// assistant text. The function is total: with no recognizable markers the
// whole reply becomes the question and the example list is empty.
func ParseQuestion(text string) (question string, examples []string) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	found := false
	for _, line := range lines {
		// Strip decorative markdown emphasis before matching.
		clean := strings.ReplaceAll(line, "*", "")
		if len(clean) >= len(questionMarker) &&
			strings.EqualFold(clean[:len(questionMarker)], questionMarker) {
			question = strings.TrimSpace(clean[len(questionMarker):])
			found = true
			break
		}
	}

	examples = []string{}
	if !found {
		// No marker: the whole reply is the question.
		return strings.TrimSpace(text), examples
	}

	for i, line := range lines {
		if !strings.EqualFold(strings.ReplaceAll(line, "*", ""), examplesMarker) {
			continue
		}
		for _, candidate := range lines[i+1:] {
			if !strings.HasPrefix(candidate, "-") || len(examples) >= maxExamples {
				break
			}
			examples = append(examples, strings.TrimSpace(strings.TrimPrefix(candidate, "-")))
		}
		break
	}
	return question, examples
}
