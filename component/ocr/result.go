package ocr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ImageOrientation is the dominant orientation of the text in an image.
type ImageOrientation string

const (
	OrientationUp    ImageOrientation = "up"
	OrientationDown  ImageOrientation = "down"
	OrientationLeft  ImageOrientation = "left"
	OrientationRight ImageOrientation = "right"
)

// RotationAngle returns the counter-clockwise angle that brings the image
// upright.
func (o ImageOrientation) RotationAngle() (int, error) {
	switch o {
	case OrientationUp:
		return 0, nil
	case OrientationLeft:
		return 90, nil
	case OrientationDown:
		return 180, nil
	case OrientationRight:
		return 270, nil
	default:
		return 0, fmt.Errorf("unknown image orientation: %q", o)
	}
}

// SafeSearchLikelihood mirrors the likelihood scale of the OCR provider's
// safe-search annotation.
type SafeSearchLikelihood int

const (
	LikelihoodUnknown SafeSearchLikelihood = iota
	LikelihoodVeryUnlikely
	LikelihoodUnlikely
	LikelihoodPossible
	LikelihoodLikely
	LikelihoodVeryLikely
)

func parseLikelihood(s string) SafeSearchLikelihood {
	switch s {
	case "VERY_UNLIKELY":
		return LikelihoodVeryUnlikely
	case "UNLIKELY":
		return LikelihoodUnlikely
	case "POSSIBLE":
		return LikelihoodPossible
	case "LIKELY":
		return LikelihoodLikely
	case "VERY_LIKELY":
		return LikelihoodVeryLikely
	default:
		return LikelihoodUnknown
	}
}

func (l SafeSearchLikelihood) String() string {
	switch l {
	case LikelihoodVeryUnlikely:
		return "VERY_UNLIKELY"
	case LikelihoodUnlikely:
		return "UNLIKELY"
	case LikelihoodPossible:
		return "POSSIBLE"
	case LikelihoodLikely:
		return "LIKELY"
	case LikelihoodVeryLikely:
		return "VERY_LIKELY"
	default:
		return "UNKNOWN"
	}
}

// SafeSearchAnnotation flags adult or violent imagery.
type SafeSearchAnnotation struct {
	Adult    SafeSearchLikelihood
	Violence SafeSearchLikelihood
}

// LabelAnnotation is one image-level label produced by the vision model.
type LabelAnnotation struct {
	Description string
	Score       float64
}

// OrientationResult is the outcome of the text-orientation detection, with
// the per-orientation word counts backing the decision.
type OrientationResult struct {
	Orientation ImageOrientation
	Counts      map[ImageOrientation]int
}

// Result is a parsed OCR response for one image.
type Result struct {
	fullText    string
	safeSearch  *SafeSearchAnnotation
	labels      []LabelAnnotation
	orientation *OrientationResult
}

type rawVertex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type rawBoundingPoly struct {
	Vertices []rawVertex `json:"vertices"`
}

type rawTextAnnotation struct {
	Description  string          `json:"description"`
	BoundingPoly rawBoundingPoly `json:"boundingPoly"`
}

type rawSafeSearch struct {
	Adult    string `json:"adult"`
	Violence string `json:"violence"`
}

type rawLabelAnnotation struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type rawFullTextAnnotation struct {
	Text string `json:"text"`
}

type rawAnnotations struct {
	TextAnnotations      []rawTextAnnotation    `json:"textAnnotations"`
	FullTextAnnotation   *rawFullTextAnnotation `json:"fullTextAnnotation"`
	SafeSearchAnnotation *rawSafeSearch         `json:"safeSearchAnnotation"`
	LabelAnnotations     []rawLabelAnnotation   `json:"labelAnnotations"`
}

type rawResponse struct {
	Responses []rawAnnotations `json:"responses"`
}

// Parse decodes a raw OCR provider response. Both the enveloped form
// ({"responses": [...]}) and a bare annotation object are accepted.
func Parse(data []byte) (*Result, error) {
	var envelope rawResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding OCR response: %w", err)
	}
	var raw rawAnnotations
	if len(envelope.Responses) > 0 {
		raw = envelope.Responses[0]
	} else {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding OCR response: %w", err)
		}
	}
	return fromRaw(raw), nil
}

// ParseMap decodes an OCR response already unmarshalled into a generic map,
// as received in API request bodies.
func ParseMap(m map[string]any) (*Result, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("re-encoding OCR payload: %w", err)
	}
	return Parse(data)
}

func fromRaw(raw rawAnnotations) *Result {
	r := &Result{}

	if raw.FullTextAnnotation != nil && raw.FullTextAnnotation.Text != "" {
		r.fullText = raw.FullTextAnnotation.Text
	} else if len(raw.TextAnnotations) > 0 {
		// the first text annotation covers the whole image
		r.fullText = raw.TextAnnotations[0].Description
	}

	if raw.SafeSearchAnnotation != nil {
		r.safeSearch = &SafeSearchAnnotation{
			Adult:    parseLikelihood(raw.SafeSearchAnnotation.Adult),
			Violence: parseLikelihood(raw.SafeSearchAnnotation.Violence),
		}
	}

	for _, label := range raw.LabelAnnotations {
		r.labels = append(r.labels, LabelAnnotation(label))
	}

	r.orientation = detectOrientation(raw.TextAnnotations)
	return r
}

// detectOrientation votes with the bounding box of every individual word:
// the direction from the first to the second vertex tells how the word is
// rotated.
func detectOrientation(annotations []rawTextAnnotation) *OrientationResult {
	if len(annotations) < 2 {
		return nil
	}
	counts := map[ImageOrientation]int{}
	// annotations[0] is the full-image annotation, skip it
	for _, annotation := range annotations[1:] {
		vertices := annotation.BoundingPoly.Vertices
		if len(vertices) < 2 {
			continue
		}
		first, second := vertices[0], vertices[1]
		switch {
		case second.X > first.X:
			counts[OrientationUp]++
		case second.X < first.X:
			counts[OrientationDown]++
		case second.Y > first.Y:
			counts[OrientationLeft]++
		case second.Y < first.Y:
			counts[OrientationRight]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	best := OrientationUp
	bestCount := -1
	for _, orientation := range []ImageOrientation{OrientationUp, OrientationDown, OrientationLeft, OrientationRight} {
		if counts[orientation] > bestCount {
			best = orientation
			bestCount = counts[orientation]
		}
	}
	return &OrientationResult{Orientation: best, Counts: counts}
}

// Text returns the full OCR text.
func (r *Result) Text() string {
	return r.fullText
}

// ContiguousText returns the full text lowercased with line breaks folded
// into spaces, the form most extractors match against.
func (r *Result) ContiguousText() string {
	return strings.ToLower(strings.ReplaceAll(r.fullText, "\n", " "))
}

func (r *Result) SafeSearch() *SafeSearchAnnotation {
	return r.safeSearch
}

func (r *Result) Labels() []LabelAnnotation {
	return r.labels
}

func (r *Result) Orientation() *OrientationResult {
	return r.orientation
}
