package speechrpc

import "strings"

// collectSegments appends a valid trailing interim segment when needed.
func collectSegments(committed []string, lastInterim string) []string {
	segments := append([]string(nil), committed...)
	if interim := cleanSegment(lastInterim); interim != "" {
		segments = appendSegment(segments, interim)
	}
	return segments
}

// appendSegment merges continuation segments so revised hypotheses replace
// their prefix instead of duplicating it.
func appendSegment(segments []string, transcript string) []string {
	transcript = cleanSegment(transcript)
	if transcript == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, transcript)
	}

	last := segments[len(segments)-1]
	switch {
	case transcript == last, strings.HasPrefix(last, transcript):
		return segments
	case strings.HasPrefix(transcript, last):
		segments[len(segments)-1] = transcript
		return segments
	default:
		return append(segments, transcript)
	}
}

// isInterimContinuation reports whether current revises previous rather than
// starting a new phrase: at least half of the shorter hypothesis must share
// leading words.
func isInterimContinuation(previous, current string) bool {
	if previous == "" || current == "" || previous == current {
		return true
	}
	if strings.HasPrefix(current, previous) || strings.HasPrefix(previous, current) {
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

// cleanSegment normalizes transcript whitespace.
func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
