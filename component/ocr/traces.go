package ocr

import (
	_ "embed"
	"regexp"
	"strings"
	"sync"

	"github.com/openfoodhub/insight-server/common/types"
)

//go:embed data/traces.txt
var tracesData string

var tracesRegex = regexp.MustCompile(
	`(?:possibilit[ée] de traces|conditionné dans un atelier qui manipule|peut contenir(?: des traces)?|traces? [ée]ventuelles? d[e']|traces? d[e']|may contain)`)

// window after the prompt inside which allergens are looked up
const tracesCaptureWindow = 100

// tag;term lines register the term as keyword and the taxonomy tag as its
// clean name.
var tracesEntries = sync.OnceValue(func() *KeywordProcessor {
	p := NewKeywordProcessor()
	for _, line := range strings.Split(tracesData, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tag, term, found := strings.Cut(line, ";")
		if !found {
			p.AddKeyword(line, "")
			continue
		}
		p.AddKeyword(term, tag)
	}
	return p
})

// FindTraces extracts allergen-trace insights: a trace prompt ("may
// contain", "traces de", ...) followed by a known allergen within a short
// window.
func FindTraces(result *Result) []types.RawInsight {
	text := result.ContiguousText()
	if text == "" {
		return nil
	}

	var insights []types.RawInsight
	for _, loc := range tracesRegex.FindAllStringIndex(text, -1) {
		prompt := text[loc[0]:loc[1]]
		end := loc[1] + tracesCaptureWindow
		if end > len(text) {
			end = len(text)
		}
		captured := text[loc[1]:end]

		for _, match := range tracesEntries().ExtractKeywords(captured) {
			insights = append(insights, types.RawInsight{
				Type:     types.InsightTypeTrace,
				ValueTag: match.CleanName,
				Data: map[string]any{
					"text":   captured[match.Start:match.End],
					"prompt": prompt,
					"notify": false,
				},
			})
		}
	}
	return insights
}
