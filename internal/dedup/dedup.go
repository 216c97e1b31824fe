// Package dedup implements line-based duplicate-code detection, the Go
// counterpart of quality_agent.py's block-similarity pass. It is a pure,
// in-memory function: callers read file contents and hand them in, nothing
// here touches disk.
package dedup

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

// Block is a contiguous, non-blank span of source lines considered as one
// duplication candidate.
type Block struct {
	FilePath  string
	StartLine int
	EndLine   int
	Lines     []string
}

// DefaultThreshold is the similarity score at or above which two blocks are
// reported as duplicates.
const DefaultThreshold = 0.8

// DefaultMinLines is the smallest block size worth comparing; shorter spans
// produce too many incidental matches (import groups, closing braces).
const DefaultMinLines = 6

// lineCommentMarkers maps a file extension to the token that starts a
// line comment in that language, for the conservative strip in stripComment.
var lineCommentMarkers = map[string]string{
	".py": "#", ".yml": "#", ".yaml": "#", ".rb": "#", ".sh": "#",
	".js": "//", ".jsx": "//", ".ts": "//", ".tsx": "//", ".mjs": "//", ".cjs": "//",
	".go": "//", ".java": "//", ".c": "//", ".cpp": "//", ".h": "//", ".hpp": "//",
	".rs": "//", ".kt": "//", ".swift": "//",
}

// stripComment removes a trailing line comment, using the marker for the
// file's extension, or both "#" and "//" when the extension is unknown.
// This is a conservative heuristic, not a real tokenizer: it does not
// account for the marker appearing inside a string literal.
func stripComment(filePath, line string) string {
	markers := []string{"#", "//"}
	if m, ok := lineCommentMarkers[strings.ToLower(filepath.Ext(filePath))]; ok {
		markers = []string{m}
	}
	for _, m := range markers {
		if i := strings.Index(line, m); i >= 0 {
			line = line[:i]
		}
	}
	return strings.TrimSpace(line)
}

// Blocks slides a minLines-line window over filePath's content one line at
// a time, after stripping comments and blank lines, so overlapping spans of
// duplicated code are all caught rather than only ones that happen to align
// on a minLines boundary.
func Blocks(filePath string, content string, minLines int) []Block {
	if minLines < 1 {
		minLines = DefaultMinLines
	}
	raw := strings.Split(content, "\n")

	var lines []string
	var lineNo []int
	for i, l := range raw {
		stripped := stripComment(filePath, l)
		if stripped == "" {
			continue
		}
		lines = append(lines, stripped)
		lineNo = append(lineNo, i+1)
	}

	var blocks []Block
	for start := 0; start+minLines <= len(lines); start++ {
		end := start + minLines
		blocks = append(blocks, Block{
			FilePath:  filePath,
			StartLine: lineNo[start],
			EndLine:   lineNo[end-1],
			Lines:     append([]string(nil), lines[start:end]...),
		})
	}
	return blocks
}

// jaccard computes the Jaccard similarity of two line sets: the size of
// their intersection over the size of their union.
func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, l := range a {
		setA[l] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, l := range b {
		setB[l] = struct{}{}
	}

	union := make(map[string]struct{}, len(setA)+len(setB))
	intersection := 0
	for l := range setA {
		union[l] = struct{}{}
		if _, ok := setB[l]; ok {
			intersection++
		}
	}
	for l := range setB {
		union[l] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Detect compares every pair of blocks across files (blocks from the same
// file are skipped — intra-file repetition is not flagged here) and emits a
// duplication finding for each pair whose similarity meets threshold. Each
// pair yields one finding anchored at the first block, with the second
// block recorded under metadata.duplicate_of.
func Detect(blocks []Block, threshold float64) []findings.Finding {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var out []findings.Finding
	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			a, b := blocks[i], blocks[j]
			if a.FilePath == b.FilePath {
				continue
			}
			score := jaccard(a.Lines, b.Lines)
			if score < threshold {
				continue
			}

			f := findings.Finding{
				Tool:      "dedup",
				RuleID:    "duplicate-code-block",
				Message:   fmt.Sprintf("block matches %s:%d-%d (similarity %.2f)", b.FilePath, b.StartLine, b.EndLine, score),
				Severity:  dedupSeverity(score),
				FilePath:  a.FilePath,
				StartLine: a.StartLine,
				EndLine:   a.EndLine,
				Category:  findings.CategoryDuplication,
				Score:     score,
				Metadata: map[string]any{
					"duplicate_of": fmt.Sprintf("%s:%d-%d", b.FilePath, b.StartLine, b.EndLine),
				},
			}
			if !f.Valid() {
				continue
			}
			out = append(out, f)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].StartLine < out[j].StartLine
	})
	return out
}

func dedupSeverity(score float64) findings.Severity {
	switch {
	case score >= 0.95:
		return findings.SeverityWarning
	default:
		return findings.SeverityInfo
	}
}
