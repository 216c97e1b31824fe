package parsers

import (
	"encoding/json"
	"strings"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

type eslintFileResult struct {
	FilePath string `json:"filePath"`
	Messages []struct {
		RuleID    string `json:"ruleId"`
		Message   string `json:"message"`
		Severity  int    `json:"severity"`
		Line      int    `json:"line"`
		Column    int    `json:"column"`
		EndLine   int    `json:"endLine"`
		EndColumn int    `json:"endColumn"`
	} `json:"messages"`
}

// ESLint parses eslint -f json output, walking file_result.messages[].
func ESLint(raw []byte) []findings.Finding {
	var fileResults []eslintFileResult
	if err := json.Unmarshal(raw, &fileResults); err != nil {
		return nil
	}

	var out []findings.Finding
	for _, fr := range fileResults {
		for _, m := range fr.Messages {
			if fr.FilePath == "" || m.Line < 1 {
				continue
			}
			f := findings.Finding{
				Tool:        "eslint",
				RuleID:      m.RuleID,
				Message:     m.Message,
				Severity:    eslintSeverity(m.Severity),
				FilePath:    fr.FilePath,
				StartLine:   m.Line,
				StartColumn: m.Column,
				EndLine:     m.EndLine,
				EndColumn:   m.EndColumn,
				Category:    eslintCategory(m.RuleID),
			}
			if !f.Valid() {
				continue
			}
			out = append(out, f)
		}
	}
	return out
}

func eslintSeverity(n int) findings.Severity {
	switch n {
	case 2:
		return findings.SeverityError
	case 1:
		return findings.SeverityWarning
	default:
		return findings.SeverityInfo
	}
}

func eslintCategory(ruleID string) findings.Category {
	switch {
	case strings.HasPrefix(ruleID, "no-"):
		return findings.CategoryErrorProne
	case strings.HasPrefix(ruleID, "prefer-"):
		return findings.CategoryStyle
	case strings.Contains(ruleID, "import"):
		return findings.CategoryImports
	default:
		return findings.CategoryOther
	}
}
