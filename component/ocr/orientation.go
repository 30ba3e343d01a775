package ocr

import (
	"github.com/openfoodhub/insight-server/common/types"
)

// FindImageOrientation emits an insight when the dominant text orientation
// of the image could be determined.
func FindImageOrientation(result *Result) []types.RawInsight {
	orientation := result.Orientation()
	if orientation == nil {
		return nil
	}
	rotation, err := orientation.Orientation.RotationAngle()
	if err != nil {
		return nil
	}

	counts := make(map[string]int, len(orientation.Counts))
	for k, v := range orientation.Counts {
		counts[string(k)] = v
	}
	return []types.RawInsight{
		{
			Type: types.InsightTypeImageOrientation,
			Data: map[string]any{
				"orientation": string(orientation.Orientation),
				"count":       counts,
				"rotation":    rotation,
			},
		},
	}
}
