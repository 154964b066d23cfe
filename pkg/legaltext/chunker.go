// Package legaltext holds the pure text heuristics used by the ingestion
// pipeline: paragraph chunking, keyword extraction, anonymization and legal
// domain detection.
package legaltext

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the desired overlap in characters.
	DefaultChunkOverlap = 200

	// charsPerOverlapWord approximates overlap characters as words.
	charsPerOverlapWord = 5
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Chunk is a text window produced by SplitIntoChunks.
type Chunk struct {
	Index        int    `json:"index"`
	Content      string `json:"content"`
	ChunkSize    int    `json:"chunkSize"`
	ChunkOverlap int    `json:"chunkOverlap"`
}

// SplitIntoChunks splits text on blank lines and packs paragraphs into
// windows of roughly chunkSize characters. When a window is closed, the next
// one is seeded with the last overlap/5 words of the closed window.
//
// A paragraph is never split, so a paragraph longer than chunkSize becomes a
// single oversized chunk.
func SplitIntoChunks(text string, chunkSize, chunkOverlap int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}

	var (
		windows []string
		current string
	)
	for _, paragraph := range paragraphBreak.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(paragraph) > chunkSize {
			windows = append(windows, strings.TrimSpace(current))
			if tail := overlapTail(current, chunkOverlap/charsPerOverlapWord); tail != "" {
				current = tail + " " + paragraph
			} else {
				current = paragraph
			}
			continue
		}

		if current == "" {
			current = paragraph
		} else {
			current += "\n\n" + paragraph
		}
	}
	if strings.TrimSpace(current) != "" {
		windows = append(windows, strings.TrimSpace(current))
	}

	chunks := make([]Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = Chunk{
			Index:        i,
			Content:      w,
			ChunkSize:    chunkSize,
			ChunkOverlap: chunkOverlap,
		}
	}
	return chunks
}

// overlapTail returns the last n whitespace-delimited words of s.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
