// Package plugins implements in-repo syntax checks that do not shell out to
// a dedicated external tool for every finding. YAML is pure Go; TypeScript
// still spawns a compiler (see typescript.go) because no parser in the
// module's dependency set implements TypeScript's type checker.
package plugins

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

// YAML checks one YAML file's raw content for structural problems, grounded
// on the original yaml syntax checks: emptiness, tab indentation, a
// yaml.v3 parse pass for syntax errors, missing space after a mapping
// colon, excessive indentation, and trailing whitespace.
func YAML(filePath string, content []byte) []findings.Finding {
	if len(strings.TrimSpace(string(content))) == 0 {
		return []findings.Finding{{
			Tool: "yaml-syntax", RuleID: "yaml-empty-file",
			Message: "file is empty", Severity: findings.SeverityWarning,
			FilePath: filePath, StartLine: 1, Category: findings.CategorySyntax,
		}}
	}

	var out []findings.Finding
	lines := strings.Split(string(content), "\n")

	for i, line := range lines {
		if strings.HasPrefix(line, "\t") {
			out = append(out, findings.Finding{
				Tool: "yaml-syntax", RuleID: "yaml-tab-indentation",
				Message:  "line uses tab indentation; YAML requires spaces",
				Severity: findings.SeverityError, FilePath: filePath,
				StartLine: i + 1, Category: findings.CategorySyntax,
			})
		}
	}

	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		line, col := yamlErrorPosition(err)
		out = append(out, findings.Finding{
			Tool: "yaml-syntax", RuleID: "yaml-syntax-error",
			Message: err.Error(), Severity: findings.SeverityError,
			FilePath: filePath, StartLine: line, StartColumn: col,
			Category: findings.CategorySyntax,
		})
		// A parse failure makes the structural checks below meaningless.
		return appendValid(nil, out...)
	}

	out = append(out, checkYAMLStructure(filePath, lines)...)
	return appendValid(nil, out...)
}

func checkYAMLStructure(filePath string, lines []string) []findings.Finding {
	var out []findings.Finding
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")

		if idx := strings.Index(trimmed, ":"); idx >= 0 && idx+1 < len(trimmed) {
			rest := trimmed[idx+1:]
			if rest != "" && rest[0] != ' ' && rest[0] != '\t' && !strings.HasPrefix(strings.TrimSpace(trimmed), "#") {
				out = append(out, findings.Finding{
					Tool: "yaml-syntax", RuleID: "yaml-missing-space-after-colon",
					Message: "missing space after ':'", Severity: findings.SeverityWarning,
					FilePath: filePath, StartLine: i + 1, Category: findings.CategorySyntax,
				})
			}
		}

		indent := len(trimmed) - len(strings.TrimLeft(trimmed, " "))
		if indent > 20 {
			out = append(out, findings.Finding{
				Tool: "yaml-syntax", RuleID: "yaml-excessive-indentation",
				Message: fmt.Sprintf("line indented %d spaces", indent), Severity: findings.SeverityInfo,
				FilePath: filePath, StartLine: i + 1, Category: findings.CategorySyntax,
			})
		}

		if strings.TrimSpace(line) != "" && line != strings.TrimRight(line, " \t") {
			out = append(out, findings.Finding{
				Tool: "yaml-syntax", RuleID: "yaml-trailing-whitespace",
				Message: "trailing whitespace", Severity: findings.SeverityInfo,
				FilePath: filePath, StartLine: i + 1, Category: findings.CategorySyntax,
			})
		}
	}
	return out
}

// yamlErrorPosition best-effort extracts a 1-based line/column from a
// yaml.v3 TypeError/parse error message, which embeds "line N:" but not a
// structured position the way Python's problem_mark does.
func yamlErrorPosition(err error) (line, col int) {
	line, col = 1, 1
	msg := err.Error()
	idx := strings.Index(msg, "line ")
	if idx < 0 {
		return line, col
	}
	rest := msg[idx+len("line "):]
	var n int
	if _, scanErr := fmt.Sscanf(rest, "%d", &n); scanErr == nil && n > 0 {
		line = n
	}
	return line, col
}

func appendValid(dst []findings.Finding, src ...findings.Finding) []findings.Finding {
	for _, f := range src {
		if f.Valid() {
			dst = append(dst, f)
		}
	}
	return dst
}
