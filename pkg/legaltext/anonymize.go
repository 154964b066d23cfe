package legaltext

import (
	"regexp"
	"strings"
)

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// Order matters: SSNs are redacted before the looser phone pattern sees them.
var sensitivePatterns = []redaction{
	{regexp.MustCompile(`(?i)\b\d{3}-\d{2}-\d{4}\b`), "[SSN_REDACTED]"},
	{regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL_REDACTED]"},
	{regexp.MustCompile(`(?i)\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), "[PHONE_REDACTED]"},
	{regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl)\b`), "[ADDRESS_REDACTED]"},
	{regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d{2})?`), "[AMOUNT_REDACTED]"},
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`),
	regexp.MustCompile(`\b(?:Mr\.|Mrs\.|Ms\.|Dr\.)\s+[A-Z][a-z]+\b`),
}

// Anonymize redacts SSNs, emails, phone numbers, street addresses, dollar
// amounts and capitalised "First Last" names.
func Anonymize(content string) string {
	out := content
	for _, r := range sensitivePatterns {
		out = r.pattern.ReplaceAllString(out, r.replacement)
	}
	for _, p := range namePatterns {
		out = p.ReplaceAllString(out, "[NAME_REDACTED]")
	}
	return out
}

// Complexity levels reported by AssessComplexity.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// AssessComplexity grades a document by word count and average sentence length.
func AssessComplexity(content string) string {
	wordCount := len(strings.Fields(content))
	sentences := strings.Split(content, ".")
	avgSentence := float64(wordCount) / float64(len(sentences))

	switch {
	case avgSentence > 25 || wordCount > 5000:
		return ComplexityHigh
	case avgSentence > 15 || wordCount > 2000:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

type legalDomain struct {
	name     string
	keywords []string
}

var legalDomains = []legalDomain{
	{"employment", []string{"employment", "employee", "employer", "workplace", "salary", "benefits"}},
	{"contracts", []string{"contract", "agreement", "terms", "conditions", "obligations"}},
	{"intellectual_property", []string{"copyright", "trademark", "patent", "intellectual property"}},
	{"privacy", []string{"privacy", "data protection", "confidential", "personal information"}},
	{"liability", []string{"liability", "damages", "negligence", "responsibility"}},
	{"real_estate", []string{"property", "real estate", "lease", "rental", "mortgage"}},
	{"corporate", []string{"corporation", "company", "business", "shareholders", "board"}},
}

// DetectDomains returns the legal domains whose keywords occur in content,
// or ["general"] when none match.
func DetectDomains(content string) []string {
	lower := strings.ToLower(content)
	var domains []string
	for _, d := range legalDomains {
		for _, kw := range d.keywords {
			if strings.Contains(lower, kw) {
				domains = append(domains, d.name)
				break
			}
		}
	}
	if len(domains) == 0 {
		return []string{"general"}
	}
	return domains
}
