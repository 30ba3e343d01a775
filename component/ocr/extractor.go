package ocr

import (
	"github.com/openfoodhub/insight-server/common/types"
)

// Extractor derives raw insights of one type from a parsed OCR result.
type Extractor func(*Result) []types.RawInsight

var extractors = map[types.InsightType]Extractor{
	types.InsightTypePackaging:        FindPackaging,
	types.InsightTypeTrace:            FindTraces,
	types.InsightTypeImageFlag:        FlagImage,
	types.InsightTypeImageOrientation: FindImageOrientation,
	types.InsightTypeProductWeight:    FindProductWeight,
	types.InsightTypePackagerCode:     FindPackagerCodes,
	types.InsightTypeExpirationDate:   FindExpirationDates,
}

// ExtractorFor returns the extractor for the given type, or nil when OCR
// extraction does not produce that type.
func ExtractorFor(insightType types.InsightType) Extractor {
	return extractors[insightType]
}

// ExtractableTypes lists the insight types OCR extraction can produce, in a
// stable order.
func ExtractableTypes() []types.InsightType {
	var out []types.InsightType
	for _, t := range types.AllInsightTypes {
		if _, ok := extractors[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ExtractAll runs every extractor over the result.
func ExtractAll(result *Result) []types.RawInsight {
	var insights []types.RawInsight
	for _, t := range ExtractableTypes() {
		insights = append(insights, extractors[t](result)...)
	}
	return insights
}
