package ocr

import (
	"regexp"
	"strings"

	"github.com/openfoodhub/insight-server/common/types"
)

var (
	embCodeRegex = regexp.MustCompile(
		`(?i)emb[\s.-]?(\d ?\d ?\d ?\d ?\d)\s?([a-z])?`)
	frApprovalRegex = regexp.MustCompile(
		`(?i)fr[\s.-]?(\d{2,3})[\s.-]?(\d{3})[\s.-]?(\d{3})\s?(?:ce|ec)\b`)
)

// normalizeEMBCode rewrites a French packager code into its canonical
// "EMB ddddd[L]" form.
func normalizeEMBCode(digits, letter string) string {
	code := "EMB " + strings.ReplaceAll(digits, " ", "")
	if letter != "" {
		code += strings.ToUpper(letter)
	}
	return code
}

// FindPackagerCodes extracts packaging-plant identifiers: French EMB codes
// and EC approval numbers. Both are unambiguous, so the insights qualify for
// automatic processing.
func FindPackagerCodes(result *Result) []types.RawInsight {
	text := result.ContiguousText()
	if text == "" {
		return nil
	}

	var insights []types.RawInsight
	seen := map[string]struct{}{}
	add := func(value, matchText, codeType string) {
		if _, dup := seen[value]; dup {
			return
		}
		seen[value] = struct{}{}
		insights = append(insights, types.RawInsight{
			Type:  types.InsightTypePackagerCode,
			Value: value,
			Data: map[string]any{
				"text":   matchText,
				"type":   codeType,
				"notify": false,
			},
			AutomaticProcessing: true,
		})
	}

	for _, match := range embCodeRegex.FindAllStringSubmatch(text, -1) {
		add(normalizeEMBCode(match[1], match[2]), match[0], "emb")
	}
	for _, match := range frApprovalRegex.FindAllStringSubmatch(text, -1) {
		value := "FR " + match[1] + "." + match[2] + "." + match[3] + " EC"
		add(value, match[0], "fr_approval")
	}
	return insights
}
