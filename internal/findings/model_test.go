package findings

import "testing"

func TestValid(t *testing.T) {
	cases := []struct {
		name string
		f    Finding
		want bool
	}{
		{"ok", Finding{Severity: SeverityError, StartLine: 1}, true},
		{"bad severity", Finding{Severity: "critical", StartLine: 1}, false},
		{"zero start line", Finding{Severity: SeverityInfo, StartLine: 0}, false},
		{"end before start", Finding{Severity: SeverityWarning, StartLine: 5, EndLine: 3}, false},
		{"end equal start ok", Finding{Severity: SeverityWarning, StartLine: 5, EndLine: 5}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.f.Valid(); got != c.want {
				t.Errorf("Valid() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	all := []Finding{
		{Severity: SeverityError, Category: CategoryStyle},
		{Severity: SeverityError, Category: CategoryStyle},
		{Severity: SeverityWarning, Category: CategoryComplexity},
	}
	sev, cat := Summarize(all)
	if sev[SeverityError] != 2 {
		t.Errorf("expected 2 errors, got %d", sev[SeverityError])
	}
	if cat[CategoryStyle] != 2 {
		t.Errorf("expected 2 style findings, got %d", cat[CategoryStyle])
	}
}
