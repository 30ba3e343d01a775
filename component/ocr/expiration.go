package ocr

import (
	"regexp"
	"time"

	"github.com/openfoodhub/insight-server/common/types"
)

type expirationFormat struct {
	regex  *regexp.Regexp
	layout string
}

var expirationFormats = []expirationFormat{
	{regexp.MustCompile(`\b(\d{2})\.(\d{2})\.(\d{4})\b`), "02.01.2006"},
	{regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`), "02/01/2006"},
	{regexp.MustCompile(`\b(\d{2})\.(\d{2})\.(\d{2})\b`), "02.01.06"},
	{regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{2})\b`), "02/01/06"},
}

// FindExpirationDates extracts candidate use-by dates. Dates in the past or
// unreasonably far in the future are discarded; the remaining matches stay
// manual since the printed date may be a production date.
func FindExpirationDates(result *Result) []types.RawInsight {
	text := result.ContiguousText()
	if text == "" {
		return nil
	}

	now := time.Now()
	var insights []types.RawInsight
	seen := map[string]struct{}{}
	for _, format := range expirationFormats {
		for _, match := range format.regex.FindAllString(text, -1) {
			date, err := time.Parse(format.layout, match)
			if err != nil {
				continue
			}
			if date.Before(now) || date.After(now.AddDate(6, 0, 0)) {
				continue
			}
			value := date.Format("02/01/2006")
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			insights = append(insights, types.RawInsight{
				Type:  types.InsightTypeExpirationDate,
				Value: value,
				Data: map[string]any{
					"text":   match,
					"notify": false,
				},
			})
		}
	}
	return insights
}
