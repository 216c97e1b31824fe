package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

func TestESLint(t *testing.T) {
	raw := []byte(`[
		{"filePath":"src/app.js","messages":[
			{"ruleId":"no-unused-vars","message":"unused","severity":2,"line":5,"column":3,"endLine":5,"endColumn":10},
			{"ruleId":"prefer-const","message":"use const","severity":1,"line":6,"column":1}
		]}
	]`)

	out := ESLint(raw)
	if assert.Len(t, out, 2) {
		assert.Equal(t, findings.SeverityError, out[0].Severity)
		assert.Equal(t, findings.CategoryErrorProne, out[0].Category)
		assert.Equal(t, findings.SeverityWarning, out[1].Severity)
		assert.Equal(t, findings.CategoryStyle, out[1].Category)
	}
}

func TestESLintSkipsMissingLine(t *testing.T) {
	raw := []byte(`[{"filePath":"a.js","messages":[{"ruleId":"x","message":"y","severity":2,"line":0}]}]`)
	assert.Empty(t, ESLint(raw))
}

func TestESLintMalformed(t *testing.T) {
	assert.Nil(t, ESLint([]byte("{not a list}")))
}
