// File path: internal/ingest/splitter.go
package ingest

// Splitter cuts long text into overlapping windows, preferring to cut at
// paragraph breaks, then line breaks, then spaces, before falling back to a
// hard cut. Every chunk is a contiguous substring of the input, so
// consecutive chunks share the overlap region verbatim.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter builds a splitter with the given window size and overlap,
// measured in runes. Non-positive values fall back to the defaults.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 6
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: []string{"\n\n", "\n", " "},
	}
}

// Split returns the chunks of text in document order. Short inputs come back
// as a single chunk; empty input yields no chunks.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.chunkSize {
		return []string{text}
	}
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := s.cutPoint(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))
		next := cut - s.overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// cutPoint finds the index just past the last separator occurrence inside the
// window, trying separators in preference order. When none fits it returns
// the hard window end.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	for _, sep := range s.separators {
		sepRunes := []rune(sep)
		for i := end - len(sepRunes); i > start; i-- {
			if matchAt(runes, i, sepRunes) {
				return i + len(sepRunes)
			}
		}
	}
	return end
}

func matchAt(runes []rune, at int, sep []rune) bool {
	if at+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}
