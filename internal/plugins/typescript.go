package plugins

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
	"github.com/fegome90-cmd/pit-crew-agents/internal/toolrunner"
)

// tscLine matches one tsc --pretty false diagnostic line:
//
//	src/app.ts(12,5): error TS2304: Cannot find name 'foo'.
var tscLine = regexp.MustCompile(`^([^(]+)\((\d+),(\d+)\):\s*(error|warning)\s+TS(\d+):\s*(.+)$`)

// nodeCheckLine matches the "file:line" prefix node --check prints on a
// syntax error, e.g. "app.js:14".
var nodeCheckLine = regexp.MustCompile(`^([^:]+):(\d+)`)

// TypeScript type-checks a .ts/.tsx file with "tsc --noEmit" and emits one
// finding per diagnostic. It shells out because no dependency in this
// module's stack implements TypeScript's type checker. TypeScript and
// JavaScript (below) are the syntax plugins that spawn a subprocess; the
// YAML plugin does not.
func TypeScript(ctx context.Context, filePath string) []findings.Finding {
	res := toolrunner.Run(ctx, "tsc", []string{"--noEmit", "--pretty", "false", filePath}, toolrunner.AllowZeroAndOne)

	switch res.Outcome {
	case toolrunner.OutcomeMissingTool:
		return []findings.Finding{{
			Tool: "ts-syntax", RuleID: "ts-missing-tool",
			Message:  "tsc is not installed; TypeScript syntax checks skipped",
			Severity: findings.SeverityInfo, FilePath: filePath, StartLine: 1,
			Category: findings.CategorySyntax,
		}}
	case toolrunner.OutcomeTimeout:
		return []findings.Finding{{
			Tool: "ts-syntax", RuleID: "ts-timeout",
			Message:  "tsc did not complete within its timeout",
			Severity: findings.SeverityWarning, FilePath: filePath, StartLine: 1,
			Category: findings.CategorySyntax,
		}}
	case toolrunner.OutcomeError:
		return nil
	}

	var out []findings.Finding
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		m := tscLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		if lineNo < 1 {
			continue
		}
		code := m[5]
		ruleID, sev := tsClassify(code)
		out = append(out, findings.Finding{
			Tool: "ts-syntax", RuleID: ruleID, Message: m[6],
			Severity: sev, FilePath: m[1], StartLine: lineNo, StartColumn: col,
			Category: findings.CategorySyntax,
		})
	}
	return out
}

func tsClassify(code string) (ruleID string, sev findings.Severity) {
	switch code {
	case "2304", "2307", "2552":
		return "ts-type-error", findings.SeverityError
	case "1002", "1003", "1005", "1108":
		return "ts-syntax-error", findings.SeverityError
	}
	if strings.HasPrefix(code, "23") {
		return "ts-type-error", findings.SeverityError
	}
	return "ts-general-error", findings.SeverityWarning
}

// JavaScript checks a .js/.jsx file's syntax with "node --check", grounded
// on the original plugin's fallback path for non-TypeScript files.
func JavaScript(ctx context.Context, filePath string) []findings.Finding {
	res := toolrunner.Run(ctx, "node", []string{"--check", filePath}, toolrunner.AllowOnlyZero)

	switch res.Outcome {
	case toolrunner.OutcomeMissingTool:
		return []findings.Finding{{
			Tool: "js-syntax", RuleID: "js-missing-tool",
			Message:  "node is not installed; JavaScript syntax checks skipped",
			Severity: findings.SeverityInfo, FilePath: filePath, StartLine: 1,
			Category: findings.CategorySyntax,
		}}
	case toolrunner.OutcomeTimeout:
		return []findings.Finding{{
			Tool: "js-syntax", RuleID: "js-timeout",
			Message:  "node --check did not complete within its timeout",
			Severity: findings.SeverityWarning, FilePath: filePath, StartLine: 1,
			Category: findings.CategorySyntax,
		}}
	case toolrunner.OutcomeOK:
		return nil
	}

	lineNo := 1
	if m := nodeCheckLine.FindStringSubmatch(string(res.Stderr)); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			lineNo = n
		}
	}
	return []findings.Finding{{
		Tool: "js-syntax", RuleID: "js-syntax-error",
		Message:  strings.TrimSpace(string(res.Stderr)),
		Severity: findings.SeverityError, FilePath: filePath, StartLine: lineNo,
		Category: findings.CategorySyntax,
	}}
}
