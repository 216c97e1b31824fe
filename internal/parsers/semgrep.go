// Package parsers converts each analyzer's native output into the uniform
// findings.Finding record. Every parser is a pure function: no I/O, tolerant
// of missing optional fields and extra trailing fields, and never panics on a
// malformed record — it drops it instead.
package parsers

import (
	"encoding/json"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

type semgrepReport struct {
	Results []struct {
		Results []semgrepResult `json:"results"`
	} `json:"results"`
}

type semgrepResult struct {
	CheckID string `json:"check_id"`
	Path    string `json:"path"`
	Start   struct {
		Line int `json:"line"`
		Col  int `json:"col"`
	} `json:"start"`
	End struct {
		Line int `json:"line"`
		Col  int `json:"col"`
	} `json:"end"`
	Extra struct {
		Message  string `json:"message"`
		Metadata *struct {
			Severity   string `json:"severity"`
			CWE        any    `json:"cwe"`
			Confidence string `json:"confidence"`
		} `json:"metadata"`
	} `json:"extra"`
}

// Semgrep parses semgrep --json output, walking results[].results[].
func Semgrep(raw []byte) []findings.Finding {
	var report semgrepReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}

	var out []findings.Finding
	for _, group := range report.Results {
		for _, r := range group.Results {
			if r.Path == "" || r.Start.Line < 1 {
				continue
			}
			f := findings.Finding{
				Tool:        "semgrep",
				RuleID:      r.CheckID,
				Message:     r.Extra.Message,
				Severity:    semgrepSeverity(r.Extra.Metadata),
				FilePath:    r.Path,
				StartLine:   r.Start.Line,
				StartColumn: r.Start.Col,
				EndLine:     r.End.Line,
				EndColumn:   r.End.Col,
				Category:    findings.CategoryOther,
			}
			if r.Extra.Metadata != nil {
				f.Metadata = map[string]any{
					"cwe":        r.Extra.Metadata.CWE,
					"confidence": r.Extra.Metadata.Confidence,
				}
			}
			if !f.Valid() {
				continue
			}
			out = append(out, f)
		}
	}
	return out
}

func semgrepSeverity(meta *struct {
	Severity   string `json:"severity"`
	CWE        any    `json:"cwe"`
	Confidence string `json:"confidence"`
}) findings.Severity {
	if meta == nil {
		return findings.SeverityWarning
	}
	switch meta.Severity {
	case "ERROR":
		return findings.SeverityError
	case "INFO":
		return findings.SeverityInfo
	default:
		return findings.SeverityWarning
	}
}
