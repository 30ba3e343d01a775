package ocr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/openfoodhub/insight-server/common/types"
)

var (
	weightMentionRegex = regexp.MustCompile(
		`(?i)(poids net [àa] l'emballage|poids net égoutté|poids net|poids|masse nette|volume net total|net weight|net wt\.?|peso neto|peso liquido|netto[ -]?gewicht)\s?:?\s?([0-9]+[,.]?[0-9]*)\s?(fl oz|dl|cl|mg|ml|lbs|oz|g|kg|l)\b`)
	weightValueRegex = regexp.MustCompile(
		`([0-9]+[,.]?[0-9]*)\s?(dl|cl|mg|ml|g|kg|l)\b`)
	weightMultiPackRegex = regexp.MustCompile(
		`(\d+)\s?x\s?([0-9]+[,.]?[0-9]*)\s?(dl|cl|mg|ml|g|kg|l)\b`)
)

// normalizeWeight converts fractional units to their base unit so that
// equal quantities written differently compare equal.
func normalizeWeight(value, unit string) (string, string) {
	value = strings.ReplaceAll(value, ",", ".")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value, unit
	}
	switch unit {
	case "fl oz":
		parsed *= 29.5735
		unit = "ml"
	case "dl":
		parsed *= 100
		unit = "ml"
	case "cl":
		parsed *= 10
		unit = "ml"
	case "lbs":
		parsed *= 453.592
		unit = "g"
	case "oz":
		parsed *= 28.3495
		unit = "g"
	default:
		return value, unit
	}
	return strconv.FormatFloat(parsed, 'f', -1, 64), unit
}

// isValidWeight filters out obvious OCR noise: leading zeros without a
// decimal point and implausibly large quantities.
func isValidWeight(value string) bool {
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, "0") && len(value) > 1 && !strings.Contains(value, ".") {
		return false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	return parsed < 10000
}

func weightInsight(text, matcherType string, automatic bool, value, unit string, extra map[string]any) types.RawInsight {
	value, unit = normalizeWeight(value, unit)
	data := map[string]any{
		"text":         text,
		"matcher_type": matcherType,
		"value":        value,
		"unit":         unit,
		"notify":       false,
	}
	for k, v := range extra {
		data[k] = v
	}
	return types.RawInsight{
		Type:                types.InsightTypeProductWeight,
		Value:               value + " " + unit,
		Data:                data,
		AutomaticProcessing: automatic,
	}
}

// FindProductWeight extracts net-weight declarations. A match preceded by an
// explicit mention ("poids net", "net weight", ...) is trusted enough for
// automatic processing; a bare quantity is not.
func FindProductWeight(result *Result) []types.RawInsight {
	text := result.ContiguousText()
	if text == "" {
		return nil
	}

	var insights []types.RawInsight
	for _, match := range weightMentionRegex.FindAllStringSubmatch(text, -1) {
		value := match[2]
		if !isValidWeight(strings.ReplaceAll(value, ",", ".")) {
			continue
		}
		insights = append(insights, weightInsight(match[0], "with_mention", true, value, match[3],
			map[string]any{"prompt": match[1]}))
	}

	for _, match := range weightMultiPackRegex.FindAllStringSubmatch(text, -1) {
		count, err := strconv.Atoi(match[1])
		if err != nil || count < 2 || count > 50 {
			continue
		}
		value := match[2]
		if !isValidWeight(strings.ReplaceAll(value, ",", ".")) {
			continue
		}
		insight := weightInsight(match[0], "multi_packaging", false, value, match[3],
			map[string]any{"count": count})
		insight.Value = fmt.Sprintf("%d x %s", count, insight.Value)
		insights = append(insights, insight)
	}

	if len(insights) > 0 {
		return insights
	}

	for _, match := range weightValueRegex.FindAllStringSubmatch(text, -1) {
		value := match[1]
		if !isValidWeight(strings.ReplaceAll(value, ",", ".")) {
			continue
		}
		insights = append(insights, weightInsight(match[0], "no_mention", false, value, match[2], nil))
	}
	return insights
}
