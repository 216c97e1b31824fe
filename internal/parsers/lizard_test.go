package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

const lizardSample = `
================================================
  NLOC    CCN   token  PARAM  length  location
------------------------------------------------
      3      1      7      0       3 small@1-3@app/util.py
     40     22    410      4      55 process_payload@10-65@app/handlers.py
     18     16     90      2      20 validate@70-90@app/handlers.py
------------------------------------------------
2 file analyzed.
`

func TestLizardThreshold(t *testing.T) {
	out := Lizard([]byte(lizardSample), 10)
	if assert.Len(t, out, 2) {
		assert.Equal(t, "process_payload", extractFuncName(t, out[0].Message))
		assert.Equal(t, findings.SeverityError, out[0].Severity)
		assert.Equal(t, 22.0, out[0].Score)
		assert.Equal(t, findings.SeverityWarning, out[1].Severity)
	}
}

func TestLizardSkipsUnparsableLines(t *testing.T) {
	out := Lizard([]byte("not a table\n---\n"), 10)
	assert.Empty(t, out)
}

func extractFuncName(t *testing.T, msg string) string {
	t.Helper()
	start := len(`function "`)
	end := start
	for end < len(msg) && msg[end] != '"' {
		end++
	}
	return msg[start:end]
}
