package speech

import "strings"

// transcript merges recognizer results into one running script. Final
// results are committed; an interim result that diverges from the previous
// interim commits the previous one first, so pauses do not drop speech.
type transcript struct {
	segments []string
	interim  string
}

func (t *transcript) observe(r Result) {
	text := cleanSegment(r.Transcript)
	if text == "" {
		return
	}
	if r.IsFinal {
		t.segments = appendSegment(t.segments, text)
		t.interim = ""
		return
	}
	if t.interim != "" && !isInterimContinuation(t.interim, text) {
		t.segments = appendSegment(t.segments, t.interim)
	}
	t.interim = text
}

// script is the committed text plus the pending interim.
func (t *transcript) script() string {
	segments := t.segments
	if t.interim != "" {
		segments = appendSegment(append([]string(nil), segments...), t.interim)
	}
	return strings.Join(segments, " ")
}

// appendSegment keeps the longer of two segments when one extends the other.
func appendSegment(segments []string, text string) []string {
	text = cleanSegment(text)
	if text == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, text)
	}

	last := segments[len(segments)-1]
	switch {
	case text == last, strings.HasPrefix(last, text):
		return segments
	case strings.HasPrefix(text, last):
		segments[len(segments)-1] = text
		return segments
	default:
		return append(segments, text)
	}
}

// isInterimContinuation treats current as a revision of previous when at
// least half of the shorter one's leading words match.
func isInterimContinuation(previous string, current string) bool {
	if previous == current || strings.HasPrefix(current, previous) || strings.HasPrefix(previous, current) {
		return true
	}

	prevWords := strings.Fields(previous)
	currWords := strings.Fields(current)
	shorter := min(len(prevWords), len(currWords))
	if shorter == 0 {
		return true
	}

	common := 0
	for common < shorter && prevWords[common] == currWords[common] {
		common++
	}
	return common*2 >= shorter
}

func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
