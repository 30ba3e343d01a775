package ocr

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/openfoodhub/insight-server/common/types"
)

//go:embed data/flag_beauty.txt
var flagBeautyData string

//go:embed data/flag_miscellaneous.txt
var flagMiscellaneousData string

// labelsToFlag are label annotations that indicate the photo shows something
// other than a food product.
var labelsToFlag = map[string]struct{}{
	"Face":              {},
	"Head":              {},
	"Selfie":            {},
	"Hair":              {},
	"Forehead":          {},
	"Chin":              {},
	"Cheek":             {},
	"Arm":               {},
	"Tooth":             {},
	"Human Leg":         {},
	"Ankle":             {},
	"Eyebrow":           {},
	"Ear":               {},
	"Neck":              {},
	"Jaw":               {},
	"Nose":              {},
	"Facial Expression": {},
	"Glasses":           {},
	"Eyewear":           {},
	"Gesture":           {},
	"Thumb":             {},
	"Jeans":             {},
	"Shoe":              {},
	"Child":             {},
	"Baby":              {},
	"Human":             {},
	"Dog":               {},
	"Cat":               {},
	"Computer":          {},
	"Laptop":            {},
	"Refrigerator":      {},
}

const labelFlagMinScore = 0.6

var imageFlagProcessor = sync.OnceValue(func() *KeywordProcessor {
	p := NewKeywordProcessor()
	for _, entry := range []struct {
		label string
		data  string
	}{
		{"beauty", flagBeautyData},
		{"miscellaneous", flagMiscellaneousData},
	} {
		label := entry.label
		p.AddKeywordsFromText(entry.data, func(keyword string) string {
			return label + ";" + strings.ToLower(keyword)
		})
	}
	return p
})

// FlagImage reports images that should be reviewed by a moderator: flagged
// keywords in the OCR text, explicit safe-search verdicts and suspicious
// label annotations.
func FlagImage(result *Result) []types.RawInsight {
	var insights []types.RawInsight

	text := result.ContiguousText()
	if matches := imageFlagProcessor().ExtractKeywords(text); len(matches) > 0 {
		match := matches[0]
		label, _, _ := strings.Cut(match.CleanName, ";")
		insights = append(insights, types.RawInsight{
			Type: types.InsightTypeImageFlag,
			Data: map[string]any{
				"text":  text[match.Start:match.End],
				"type":  "text",
				"label": label,
			},
		})
	}

	if safeSearch := result.SafeSearch(); safeSearch != nil {
		for _, verdict := range []struct {
			label      string
			likelihood SafeSearchLikelihood
		}{
			{"adult", safeSearch.Adult},
			{"violence", safeSearch.Violence},
		} {
			if verdict.likelihood >= LikelihoodVeryLikely {
				insights = append(insights, types.RawInsight{
					Type: types.InsightTypeImageFlag,
					Data: map[string]any{
						"type":       "safe_search_annotation",
						"label":      verdict.label,
						"likelihood": verdict.likelihood.String(),
					},
				})
			}
		}
	}

	for _, label := range result.Labels() {
		if _, flagged := labelsToFlag[label.Description]; flagged && label.Score >= labelFlagMinScore {
			insights = append(insights, types.RawInsight{
				Type: types.InsightTypeImageFlag,
				Data: map[string]any{
					"type":       "label_annotation",
					"label":      strings.ToLower(label.Description),
					"likelihood": label.Score,
				},
			})
			break
		}
	}

	return insights
}
