package services

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestEvalFormula(t *testing.T) {
	metrics := map[string]float64{
		"deployment_frequency": 2.5,
		"incident_frequency":   8,
		"blocked_tickets":      12,
	}

	tests := []struct {
		name    string
		formula string
		want    bool
		wantErr bool
	}{
		{"simple comparison true", "deployment_frequency < 5", true, false},
		{"simple comparison false", "deployment_frequency > 5", false, false},
		{"and both hold", "deployment_frequency < 5 && incident_frequency >= 8", true, false},
		{"and one fails", "deployment_frequency < 5 && incident_frequency > 8", false, false},
		{"or short circuit", "deployment_frequency > 5 || blocked_tickets == 12", true, false},
		{"parenthesized group", "(deployment_frequency < 5 || incident_frequency < 5) && blocked_tickets != 0", true, false},
		{"nested groups", "((incident_frequency >= 8))", true, false},
		{"not equal", "incident_frequency != 8", false, false},
		{"literal only expression", "3.5 <= 3.5", true, false},
		{"unresolved metric name rejected", "unknown_metric > 1", false, true},
		{"single equals rejected", "incident_frequency = 8", false, true},
		{"trailing garbage rejected", "incident_frequency > 1 5", false, true},
		{"unbalanced parens rejected", "(incident_frequency > 1", false, true},
		{"bare number rejected", "42", false, true},
		{"empty formula rejected", "", false, true},
		{"single ampersand rejected", "1 < 2 & 3 < 4", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalFormula(tt.formula, metrics)
			if (err != nil) != tt.wantErr {
				t.Fatalf("evalFormula(%q) error = %v, wantErr %v", tt.formula, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("evalFormula(%q) = %v, want %v", tt.formula, got, tt.want)
			}
		})
	}
}

func TestSubstituteMetricsLongestFirst(t *testing.T) {
	// "deployment_frequency" contains "deployment"; longer names must be
	// substituted first or the result is corrupted.
	metrics := map[string]float64{
		"deployment":           1,
		"deployment_frequency": 2,
	}
	expr := substituteMetrics("deployment_frequency > deployment", metrics)
	if expr != "2 > 1" {
		t.Fatalf("substituteMetrics = %q, want %q", expr, "2 > 1")
	}
}

func TestEvaluateFormulaInvalidReturnsFalse(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	s := NewAutomationService(nil, logger)

	if s.EvaluateFormula("exec(1)", map[string]float64{}) {
		t.Fatal("malformed formula must evaluate to false")
	}
	if !s.EvaluateFormula("cpu > 0.5", map[string]float64{"cpu": 0.9}) {
		t.Fatal("valid formula should evaluate to true")
	}
}
