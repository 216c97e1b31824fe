// Package sarif builds a SARIF 2.1.0 report from a flat finding list, one
// run per contributing tool.
package sarif

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

const schemaURI = "https://json.schemastore.org/sarif-2.1.0"
const sarifVersion = "2.1.0"

// toolInfo is the static driver metadata table; unknown tools fall back to
// their bare name with no information URI.
var toolInfo = map[string]struct {
	version string
	infoURI string
}{
	"semgrep":     {"1.x", "https://semgrep.dev"},
	"gitleaks":    {"8.x", "https://github.com/gitleaks/gitleaks"},
	"osv-scanner": {"1.x", "https://github.com/google/osv-scanner"},
	"ruff":        {"0.x", "https://docs.astral.sh/ruff/"},
	"eslint":      {"9.x", "https://eslint.org"},
	"lizard":      {"1.x", "https://github.com/terryyin/lizard"},
	"dedup":       {"1.x", ""},
	"yaml-syntax": {"1.x", ""},
	"ts-syntax":   {"1.x", ""},
}

type document struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []run  `json:"runs"`
}

type run struct {
	Tool    tool     `json:"tool"`
	Results []result `json:"results"`
}

type tool struct {
	Driver driver `json:"driver"`
}

type driver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri,omitempty"`
}

type result struct {
	RuleID    string     `json:"ruleId"`
	Level     string     `json:"level"`
	Message   message    `json:"message"`
	Locations []location `json:"locations"`
}

type message struct {
	Text string `json:"text"`
}

type location struct {
	PhysicalLocation physicalLocation `json:"physicalLocation"`
}

type physicalLocation struct {
	ArtifactLocation artifactLocation `json:"artifactLocation"`
	Region           region           `json:"region"`
}

type artifactLocation struct {
	URI string `json:"uri"`
}

type region struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// Build converts a flat finding list into a SARIF document, grouping
// findings into one run per tool. repoRoot, when non-empty, is stripped
// from each finding's file path to produce a repo-relative URI.
func Build(all []findings.Finding, repoRoot string) []byte {
	byTool := make(map[string][]findings.Finding)
	var toolOrder []string
	for _, f := range all {
		if _, seen := byTool[f.Tool]; !seen {
			toolOrder = append(toolOrder, f.Tool)
		}
		byTool[f.Tool] = append(byTool[f.Tool], f)
	}
	sort.Strings(toolOrder)

	doc := document{Schema: schemaURI, Version: sarifVersion}
	for _, toolName := range toolOrder {
		doc.Runs = append(doc.Runs, buildRun(toolName, byTool[toolName], repoRoot))
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil
	}
	return out
}

func buildRun(toolName string, fs []findings.Finding, repoRoot string) run {
	info := toolInfo[toolName]
	if info.version == "" {
		info.version = "unknown"
	}

	r := run{
		Tool: tool{Driver: driver{
			Name:           toolName,
			Version:        info.version,
			InformationURI: info.infoURI,
		}},
	}

	for _, f := range fs {
		r.Results = append(r.Results, toResult(f, repoRoot))
	}
	return r
}

func toResult(f findings.Finding, repoRoot string) result {
	startCol := f.StartColumn
	if startCol == 0 {
		startCol = 1
	}
	endLine := f.EndLine
	if endLine == 0 {
		endLine = f.StartLine
	}
	endCol := f.EndColumn
	if endCol == 0 {
		endCol = startCol
	}

	return result{
		RuleID:  f.RuleID,
		Level:   toLevel(f.Severity),
		Message: message{Text: f.Message},
		Locations: []location{{
			PhysicalLocation: physicalLocation{
				ArtifactLocation: artifactLocation{URI: relativize(f.FilePath, repoRoot)},
				Region: region{
					StartLine:   f.StartLine,
					StartColumn: startCol,
					EndLine:     endLine,
					EndColumn:   endCol,
				},
			},
		}},
	}
}

func toLevel(s findings.Severity) string {
	switch s {
	case findings.SeverityError:
		return "error"
	case findings.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func relativize(path, repoRoot string) string {
	if repoRoot == "" {
		return path
	}
	rel, err := filepath.Rel(repoRoot, path)
	if err != nil {
		return path
	}
	return rel
}

// WriteFile writes a SARIF document to path atomically: it writes to a
// sibling temp file then renames over the destination, so a reader never
// observes a partial report.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sarif-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
