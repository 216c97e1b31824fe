package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

func TestSemgrep(t *testing.T) {
	raw := []byte(`{
		"results": [
			{"results": [
				{
					"check_id": "python.lang.security.audit.exec-detected",
					"path": "app/main.py",
					"start": {"line": 12, "col": 3},
					"end": {"line": 12, "col": 20},
					"extra": {
						"message": "exec() detected",
						"metadata": {"severity": "ERROR", "cwe": "CWE-78", "confidence": "HIGH"}
					}
				}
			]}
		]
	}`)

	out := Semgrep(raw)
	if assert.Len(t, out, 1) {
		f := out[0]
		assert.Equal(t, "semgrep", f.Tool)
		assert.Equal(t, "python.lang.security.audit.exec-detected", f.RuleID)
		assert.Equal(t, findings.SeverityError, f.Severity)
		assert.Equal(t, "app/main.py", f.FilePath)
		assert.Equal(t, 12, f.StartLine)
		assert.Equal(t, "CWE-78", f.Metadata["cwe"])
	}
}

func TestSemgrepMalformed(t *testing.T) {
	assert.Nil(t, Semgrep([]byte("not json")))
}

func TestSemgrepDropsMissingPath(t *testing.T) {
	raw := []byte(`{"results":[{"results":[{"check_id":"x","start":{"line":1}}]}]}`)
	assert.Empty(t, Semgrep(raw))
}
