package parsers

import (
	"encoding/json"
	"strings"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

type ruffItem struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Location struct {
		Row    int `json:"row"`
		Column int `json:"column"`
	} `json:"location"`
	EndLocation struct {
		Row    int `json:"row"`
		Column int `json:"column"`
	} `json:"end_location"`
	Fix *struct {
		Message string `json:"message"`
	} `json:"fix"`
}

// Ruff parses ruff --output-format=json output.
func Ruff(raw []byte) []findings.Finding {
	var items []ruffItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	var out []findings.Finding
	for _, it := range items {
		if it.Filename == "" || it.Location.Row < 1 {
			continue
		}
		sev := findings.SeverityError
		if it.Fix != nil {
			sev = findings.SeverityWarning
		}
		f := findings.Finding{
			Tool:        "ruff",
			RuleID:      it.Code,
			Message:     it.Message,
			Severity:    sev,
			FilePath:    it.Filename,
			StartLine:   it.Location.Row,
			StartColumn: it.Location.Column,
			EndLine:     it.EndLocation.Row,
			EndColumn:   it.EndLocation.Column,
			Category:    ruffCategory(it.Code),
		}
		if !f.Valid() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func ruffCategory(code string) findings.Category {
	switch {
	case strings.HasPrefix(code, "E"), strings.HasPrefix(code, "W"):
		return findings.CategoryStyle
	case strings.HasPrefix(code, "F"):
		return findings.CategoryErrorProne
	case strings.HasPrefix(code, "B"):
		return findings.CategoryBugbear
	default:
		return findings.CategoryOther
	}
}
