package parsers

import (
	"encoding/json"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

type osvReport struct {
	Results []struct {
		Packages []struct {
			Package struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"package"`
			Vulnerabilities []struct {
				ID       string `json:"id"`
				Summary  string `json:"summary"`
				Severity []struct {
					Type  string `json:"type"`
					Score string `json:"score"`
				} `json:"severity"`
				DatabaseSpecific *struct {
					Severity string `json:"severity"`
				} `json:"database_specific"`
			} `json:"vulnerabilities"`
		} `json:"packages"`
	} `json:"results"`
}

// OSV parses osv-scanner JSON output, walking results[].packages[].vulnerabilities[].
// Locations are synthetic (projectRoot, line 1) because findings are
// package-scoped, not file-scoped.
func OSV(raw []byte, projectRoot string) []findings.Finding {
	var report osvReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}
	if projectRoot == "" {
		projectRoot = "."
	}

	var out []findings.Finding
	for _, result := range report.Results {
		for _, pkg := range result.Packages {
			for _, vuln := range pkg.Vulnerabilities {
				sev := osvSeverity(vuln.DatabaseSpecific)
				f := findings.Finding{
					Tool:      "osv-scanner",
					RuleID:    vuln.ID,
					Message:   vuln.Summary,
					Severity:  sev,
					FilePath:  projectRoot,
					StartLine: 1,
					Category:  findings.CategoryOther,
					Metadata: map[string]any{
						"package": pkg.Package.Name,
						"version": pkg.Package.Version,
					},
				}
				if vuln.ID == "" || !f.Valid() {
					continue
				}
				out = append(out, f)
			}
		}
	}
	return out
}

func osvSeverity(dbSpecific *struct {
	Severity string `json:"severity"`
}) findings.Severity {
	if dbSpecific == nil {
		return findings.SeverityWarning
	}
	switch dbSpecific.Severity {
	case "CRITICAL", "HIGH":
		return findings.SeverityError
	case "MEDIUM", "MODERATE":
		return findings.SeverityWarning
	case "LOW":
		return findings.SeverityInfo
	default:
		return findings.SeverityWarning
	}
}
