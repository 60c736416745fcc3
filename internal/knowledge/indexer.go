package knowledge

import (
	_ "embed"
	"fmt"
	"os"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

//go:embed site.txt
var siteDocument string

// Chunk is a bounded window of the knowledge document used as a retrieval unit.
// Start and End are rune offsets into the source document, End exclusive.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// cut preferences, strongest first
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

// Build splits document into consecutive windows of at most chunkSize runes.
// Adjacent windows share exactly overlap runes: every window after the first
// starts overlap runes before the previous one ended, so the document is
// chunks[0].Text followed by each later chunk with its first overlap runes removed.
// An empty document yields no chunks.
func Build(document string, chunkSize, overlap int) []Chunk {
	if document == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > chunkSize/2 {
		overlap = chunkSize / 2
	}

	runes := []rune(document)
	chunks := make([]Chunk, 0, len(runes)/chunkSize+1)
	start := 0
	for {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end, chunkSize, overlap)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		if end == len(runes) {
			return chunks
		}
		start = end - overlap
	}
}

// cutPoint picks where the window [start, limit) should end. It looks for the
// strongest separator in the back half of the window and cuts right after it;
// the lower bound keeps every window longer than the overlap so the scan always advances.
func cutPoint(runes []rune, start, limit, chunkSize, overlap int) int {
	lower := start + chunkSize/2
	if floor := start + overlap + 1; floor > lower {
		lower = floor
	}

	for _, sep := range separators {
		for p := limit; p >= lower && p-len(sep) >= start; p-- {
			if hasSeparatorAt(runes, p, sep) {
				return p
			}
		}
	}
	return limit
}

func hasSeparatorAt(runes []rune, end int, sep []rune) bool {
	begin := end - len(sep)
	for i, r := range sep {
		if runes[begin+i] != r {
			return false
		}
	}
	return true
}

// Corpus holds the chunked knowledge document. It is built once at startup
// and shared read-only by every session afterwards.
type Corpus struct {
	chunks []Chunk
}

// NewCorpus indexes document with the given window parameters.
func NewCorpus(document string, chunkSize, overlap int) *Corpus {
	return &Corpus{chunks: Build(document, chunkSize, overlap)}
}

// Chunks returns the indexed chunks in source order. The slice is shared; do not modify it.
func (c *Corpus) Chunks() []Chunk {
	if c == nil {
		return nil
	}
	return c.chunks
}

// Len reports the number of chunks.
func (c *Corpus) Len() int {
	return len(c.Chunks())
}

// Load returns the knowledge document stored at path, or the bundled site
// document when path is empty.
func Load(path string) (string, error) {
	if path == "" {
		return siteDocument, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read knowledge document: %w", err)
	}
	return string(data), nil
}
