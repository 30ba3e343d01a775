package ocr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfoodhub/insight-server/common/types"
)

func TestParseEnvelope(t *testing.T) {
	data := []byte(`{
		"responses": [
			{
				"textAnnotations": [
					{"description": "Poids net 500 g\nMay contain milk"}
				],
				"safeSearchAnnotation": {"adult": "VERY_LIKELY", "violence": "UNLIKELY"},
				"labelAnnotations": [
					{"description": "Face", "score": 0.92}
				]
			}
		]
	}`)

	result, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "Poids net 500 g\nMay contain milk", result.Text())
	require.Equal(t, "poids net 500 g may contain milk", result.ContiguousText())
	require.NotNil(t, result.SafeSearch())
	require.Equal(t, LikelihoodVeryLikely, result.SafeSearch().Adult)
	require.Equal(t, LikelihoodUnlikely, result.SafeSearch().Violence)
	require.Len(t, result.Labels(), 1)
	require.Equal(t, "Face", result.Labels()[0].Description)
}

func TestParseBareObject(t *testing.T) {
	data := []byte(`{"fullTextAnnotation": {"text": "EMB 56123"}}`)

	result, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "EMB 56123", result.Text())
	require.Nil(t, result.SafeSearch())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	require.Error(t, err)
}

func vertexAnnotation(first, second rawVertex) rawTextAnnotation {
	return rawTextAnnotation{
		BoundingPoly: rawBoundingPoly{Vertices: []rawVertex{first, second}},
	}
}

func TestDetectOrientation(t *testing.T) {
	cases := []struct {
		name     string
		words    []rawTextAnnotation
		expected ImageOrientation
	}{
		{
			name: "upright text",
			words: []rawTextAnnotation{
				vertexAnnotation(rawVertex{X: 0, Y: 0}, rawVertex{X: 10, Y: 0}),
				vertexAnnotation(rawVertex{X: 20, Y: 0}, rawVertex{X: 30, Y: 0}),
			},
			expected: OrientationUp,
		},
		{
			name: "rotated left",
			words: []rawTextAnnotation{
				vertexAnnotation(rawVertex{X: 5, Y: 0}, rawVertex{X: 5, Y: 10}),
				vertexAnnotation(rawVertex{X: 5, Y: 20}, rawVertex{X: 5, Y: 30}),
			},
			expected: OrientationLeft,
		},
		{
			name: "majority wins",
			words: []rawTextAnnotation{
				vertexAnnotation(rawVertex{X: 0, Y: 0}, rawVertex{X: 0, Y: 10}),
				vertexAnnotation(rawVertex{X: 0, Y: 20}, rawVertex{X: 0, Y: 30}),
				vertexAnnotation(rawVertex{X: 0, Y: 0}, rawVertex{X: 10, Y: 0}),
			},
			expected: OrientationLeft,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// the first annotation covers the whole image and is skipped
			annotations := append([]rawTextAnnotation{{Description: "full"}}, tc.words...)
			result := detectOrientation(annotations)
			require.NotNil(t, result)
			require.Equal(t, tc.expected, result.Orientation)
		})
	}
}

func TestDetectOrientationNoWords(t *testing.T) {
	require.Nil(t, detectOrientation(nil))
	require.Nil(t, detectOrientation([]rawTextAnnotation{{Description: "full"}}))
}

func TestRotationAngle(t *testing.T) {
	for orientation, expected := range map[ImageOrientation]int{
		OrientationUp:    0,
		OrientationLeft:  90,
		OrientationDown:  180,
		OrientationRight: 270,
	} {
		angle, err := orientation.RotationAngle()
		require.NoError(t, err)
		require.Equal(t, expected, angle)
	}

	_, err := ImageOrientation("sideways").RotationAngle()
	require.Error(t, err)
}

func TestFindImageOrientation(t *testing.T) {
	result := &Result{
		orientation: &OrientationResult{
			Orientation: OrientationLeft,
			Counts:      map[ImageOrientation]int{OrientationLeft: 12, OrientationUp: 1},
		},
	}

	insights := FindImageOrientation(result)
	require.Len(t, insights, 1)
	require.Equal(t, types.InsightTypeImageOrientation, insights[0].Type)
	require.Equal(t, "left", insights[0].Data["orientation"])
	require.Equal(t, 90, insights[0].Data["rotation"])

	require.Empty(t, FindImageOrientation(&Result{}))
}
