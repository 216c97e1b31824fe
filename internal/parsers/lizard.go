package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

// lizardRow matches one data row of lizard's fixed-width function table:
//
//	NLOC    CCN   token  PARAM  length  location
//	    3      1      7      0       3 main@1-3@foo.py
//
// location is "<function>@<startline>-<endline>@<file>".
var lizardRow = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s+(\S+)@(\d+)-(\d+)@(.+)$`)

// Lizard parses lizard's fixed-width text output. Per the design note in
// §9, the text table is the contract; lizard's --json support is treated as
// opportunistic and not relied upon. Lines that do not match the row pattern
// (headers, separators, summary footer) are skipped silently.
func Lizard(raw []byte, complexityThreshold int) []findings.Finding {
	var out []findings.Finding

	for _, line := range strings.Split(string(raw), "\n") {
		m := lizardRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		ccn, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if ccn <= complexityThreshold {
			continue
		}

		startLine, err := strconv.Atoi(m[7])
		if err != nil || startLine < 1 {
			continue
		}
		endLine, _ := strconv.Atoi(m[8])
		funcName := m[6]
		file := m[9]

		f := findings.Finding{
			Tool:      "lizard",
			RuleID:    "high-cyclomatic-complexity",
			Message:   fmt.Sprintf("function %q has cyclomatic complexity %d (threshold %d)", funcName, ccn, complexityThreshold),
			Severity:  lizardSeverity(ccn),
			FilePath:  file,
			StartLine: startLine,
			EndLine:   endLine,
			Category:  findings.CategoryComplexity,
			Score:     float64(ccn),
		}
		if !f.Valid() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func lizardSeverity(ccn int) findings.Severity {
	switch {
	case ccn >= 20:
		return findings.SeverityError
	case ccn >= 15:
		return findings.SeverityWarning
	default:
		return findings.SeverityInfo
	}
}
