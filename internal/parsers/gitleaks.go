package parsers

import (
	"encoding/json"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

type gitleaksFinding struct {
	Description string `json:"Description"`
	RuleID      string `json:"RuleID"`
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
	StartColumn int    `json:"StartColumn"`
}

// Gitleaks parses a gitleaks JSON report, accepting either a bare list or an
// object with a "findings" key — both tool versions are in the wild.
func Gitleaks(raw []byte) []findings.Finding {
	entries := decodeGitleaksEntries(raw)

	var out []findings.Finding
	for _, e := range entries {
		if e.File == "" || e.StartLine < 1 {
			continue
		}
		f := findings.Finding{
			Tool:        "gitleaks",
			RuleID:      e.RuleID,
			Message:     e.Description,
			Severity:    findings.SeverityError,
			FilePath:    e.File,
			StartLine:   e.StartLine,
			StartColumn: e.StartColumn,
			Category:    findings.CategoryOther,
		}
		if !f.Valid() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func decodeGitleaksEntries(raw []byte) []gitleaksFinding {
	var list []gitleaksFinding
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var wrapped struct {
		Findings []gitleaksFinding `json:"findings"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Findings
	}

	return nil
}
