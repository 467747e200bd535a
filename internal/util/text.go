package util

// ChunkLines groups lines into chunks whose newline-joined length stays
// within maxLen. A line longer than maxLen gets a chunk of its own.
func ChunkLines(lines []string, maxLen int) [][]string {
	var chunks [][]string
	var current []string
	size := 0

	for _, line := range lines {
		added := len(line)
		if len(current) > 0 {
			added++ // newline
		}
		if len(current) > 0 && size+added > maxLen {
			chunks = append(chunks, current)
			current, size = nil, 0
			added = len(line)
		}
		current = append(current, line)
		size += added
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
