package legaltext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		notWant string
	}{
		{"ssn", "ssn 123-45-6789 on file", "[SSN_REDACTED]", "123-45-6789"},
		{"email", "write to counsel@example.com today", "[EMAIL_REDACTED]", "counsel@example.com"},
		{"phone", "call 555.123.4567 now", "[PHONE_REDACTED]", "555.123.4567"},
		{"amount", "a fee of $12,500.00 is due", "[AMOUNT_REDACTED]", "$12,500.00"},
		{"name", "signed by John Smith here", "[NAME_REDACTED]", "John Smith"},
		{"titled name", "attention mr. x and Dr. Watson", "[NAME_REDACTED]", "Dr. Watson"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Anonymize(tt.input)
			assert.Contains(t, got, tt.want)
			assert.NotContains(t, got, tt.notWant)
		})
	}
}

func TestAnonymize_LeavesPlainTextAlone(t *testing.T) {
	in := "the lessee shall keep the premises clean"
	assert.Equal(t, in, Anonymize(in))
}

func TestAssessComplexity(t *testing.T) {
	assert.Equal(t, ComplexityLow, AssessComplexity("Short clause. Another one."))

	longSentence := strings.Repeat("word ", 60) + "."
	assert.Equal(t, ComplexityHigh, AssessComplexity(longSentence))

	medium := strings.Repeat("word ", 40) + "."
	assert.Equal(t, ComplexityMedium, AssessComplexity(medium))
}

func TestDetectDomains(t *testing.T) {
	domains := DetectDomains("This lease agreement binds the employer and the employee.")
	assert.Equal(t, []string{"employment", "contracts", "real_estate"}, domains)

	assert.Equal(t, []string{"general"}, DetectDomains("nothing relevant in here"))
}
