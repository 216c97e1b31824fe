package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
)

func TestRuff(t *testing.T) {
	raw := []byte(`[
		{"code":"F401","message":"unused import","filename":"app/main.py","location":{"row":3,"column":1},"end_location":{"row":3,"column":10}},
		{"code":"E501","message":"line too long","filename":"app/util.py","location":{"row":10,"column":1},"end_location":{"row":10,"column":90},"fix":{"message":"shorten line"}}
	]`)

	out := Ruff(raw)
	if assert.Len(t, out, 2) {
		assert.Equal(t, findings.CategoryErrorProne, out[0].Category)
		assert.Equal(t, findings.SeverityError, out[0].Severity)
		assert.Equal(t, findings.SeverityWarning, out[1].Severity)
		assert.Equal(t, findings.CategoryStyle, out[1].Category)
	}
}

func TestRuffDropsMissingLocation(t *testing.T) {
	raw := []byte(`[{"code":"F401","message":"x","filename":"a.py","location":{"row":0}}]`)
	assert.Empty(t, Ruff(raw))
}
