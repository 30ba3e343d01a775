package ocr

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/openfoodhub/insight-server/common/types"
)

//go:embed data/packaging.txt
var packagingData string

var packagingProcessor = sync.OnceValue(func() *KeywordProcessor {
	p := NewKeywordProcessor()
	p.AddKeywordsFromText(packagingData, nil)
	return p
})

// FindPackaging extracts packaging insights from the OCR text.
func FindPackaging(result *Result) []types.RawInsight {
	text := result.ContiguousText()
	if text == "" {
		return nil
	}

	var insights []types.RawInsight
	for _, match := range packagingProcessor().ExtractKeywords(text) {
		matchStr := text[match.Start:match.End]
		for _, packaging := range strings.Split(match.CleanName, ";") {
			insights = append(insights, types.RawInsight{
				Type:     types.InsightTypePackaging,
				Value:    packaging,
				ValueTag: Tagify(packaging),
				Data: map[string]any{
					"text":   matchStr,
					"notify": false,
				},
				AutomaticProcessing: true,
			})
		}
	}
	return insights
}

// Tagify normalizes a value into its tag form: lowercase, spaces and
// apostrophes replaced by dashes.
func Tagify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\'', '"':
			return '-'
		default:
			return r
		}
	}, value)
	return strings.Trim(value, "-")
}
