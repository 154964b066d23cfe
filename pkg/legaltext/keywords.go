package legaltext

import (
	"regexp"
	"sort"
	"strings"
)

// MaxKeywords is the number of keywords returned by ExtractKeywords.
const MaxKeywords = 10

var keywordToken = regexp.MustCompile(`[a-z]{4,}`)

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "they": {}, "have": {},
	"been": {}, "were": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"shall": {}, "their": {}, "there": {}, "which": {}, "when": {}, "what": {},
	"where": {}, "these": {}, "those": {}, "than": {}, "then": {}, "them": {},
	"into": {}, "upon": {}, "such": {}, "other": {}, "only": {}, "also": {},
	"more": {}, "most": {}, "some": {}, "each": {}, "said": {}, "does": {},
	"about": {}, "under": {}, "over": {}, "after": {}, "before": {}, "being": {},
	"your": {}, "very": {}, "here": {}, "hereby": {}, "herein": {}, "thereof": {},
	"whereas": {}, "must": {}, "make": {}, "made": {}, "between": {}, "within": {},
	"without": {}, "because": {}, "while": {}, "both": {}, "same": {}, "whether": {},
}

type keywordCount struct {
	word  string
	count int
}

// ExtractKeywords returns up to MaxKeywords lowercase tokens of at least four
// letters, ranked by frequency. Stop words are skipped. Ties keep the order
// in which the words first appear.
func ExtractKeywords(text string) []string {
	counts := make(map[string]int)
	var order []string
	for _, token := range keywordToken.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, seen := counts[token]; !seen {
			order = append(order, token)
		}
		counts[token]++
	}

	ranked := make([]keywordCount, len(order))
	for i, w := range order {
		ranked[i] = keywordCount{word: w, count: counts[w]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})

	if len(ranked) > MaxKeywords {
		ranked = ranked[:MaxKeywords]
	}
	keywords := make([]string, len(ranked))
	for i, kc := range ranked {
		keywords[i] = kc.word
	}
	return keywords
}
