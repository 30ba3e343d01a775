package component

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/types"
)

// LogoLabel is the (type, value) pair a logo can be annotated with.
type LogoLabel struct {
	Type  string
	Value string
}

// UnknownLogoLabel represents neighbors without a confirmed annotation.
var UnknownLogoLabel = LogoLabel{Type: "UNKNOWN"}

// defaultLogoThreshold applies to labels without a stored threshold.
const defaultLogoThreshold = 0.1

// annotatedLogoMaxImageAge bounds the recency check when an insight is
// generated from a human logo annotation.
const annotatedLogoMaxImageAge = 30 * 24 * time.Hour

var logoTypeMapping = map[string]types.InsightType{
	"brand": types.InsightTypeBrand,
	"label": types.InsightTypeLabel,
}

var ErrLogoNotFound = errors.New("logo not found")

type LogoComponent interface {
	Get(ctx context.Context, id int64) (*database.LogoAnnotation, error)
	// PredictProba computes per-label probabilities for a logo from its
	// stored nearest neighbors, nil when no neighbors are stored.
	PredictProba(ctx context.Context, logo *database.LogoAnnotation) (map[LogoLabel]float64, error)
	// ImportInsights classifies the logos and imports an insight for
	// every label that clears its confidence threshold.
	ImportInsights(ctx context.Context, logos []database.LogoAnnotation, serverDomain string) (int, error)
	// Annotate records human verdicts on logos and derives insights from
	// them with full confidence.
	Annotate(ctx context.Context, reqs []types.LogoAnnotateRequest, username, serverDomain string) ([]database.LogoAnnotation, error)
}

type logoComponentImpl struct {
	logoStore  database.LogoStore
	imageStore database.ImageStore
	products   ProductComponent
	importer   ImporterComponent
}

func NewLogoComponent(products ProductComponent, importer ImporterComponent) LogoComponent {
	return &logoComponentImpl{
		logoStore:  database.NewLogoStore(),
		imageStore: database.NewImageStore(),
		products:   products,
		importer:   importer,
	}
}

func (c *logoComponentImpl) Get(ctx context.Context, id int64) (*database.LogoAnnotation, error) {
	logo, err := c.logoStore.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLogoNotFound
		}
		return nil, err
	}
	return logo, nil
}

// annotationIndex maps logo IDs to their confirmed label.
func (c *logoComponentImpl) annotationIndex(ctx context.Context) (map[int64]LogoLabel, error) {
	annotated, err := c.logoStore.Annotated(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading annotated logos: %w", err)
	}
	index := make(map[int64]LogoLabel, len(annotated))
	for _, logo := range annotated {
		if logo.AnnotationValue == "" {
			index[logo.ID] = LogoLabel{Type: logo.AnnotationType}
		} else if logo.TaxonomyValue != "" {
			index[logo.ID] = LogoLabel{Type: logo.AnnotationType, Value: logo.TaxonomyValue}
		}
	}
	return index, nil
}

func (c *logoComponentImpl) PredictProba(ctx context.Context, logo *database.LogoAnnotation) (map[LogoLabel]float64, error) {
	if logo.NearestNeighbors == nil || len(logo.NearestNeighbors.LogoIDs) == 0 {
		return nil, nil
	}
	index, err := c.annotationIndex(ctx)
	if err != nil {
		return nil, err
	}

	neighbors := logo.NearestNeighbors
	labels := make([]LogoLabel, len(neighbors.LogoIDs))
	for i, id := range neighbors.LogoIDs {
		label, ok := index[id]
		if !ok {
			label = UnknownLogoLabel
		}
		labels[i] = label
	}
	return predictProba(labels, neighbors.Distances), nil
}

// predictProba votes with inverse-distance weights. A zero-distance
// neighbor is an exact match: it gets weight 1 and every other neighbor 0.
func predictProba(labels []LogoLabel, distances []float64) map[LogoLabel]float64 {
	weights := make([]float64, len(distances))
	exactMatch := false
	for _, d := range distances {
		if d == 0 {
			exactMatch = true
			break
		}
	}
	for i, d := range distances {
		if exactMatch {
			if d == 0 {
				weights[i] = 1
			}
		} else {
			weights[i] = 1 / d
		}
	}

	votes := map[LogoLabel]float64{UnknownLogoLabel: 0}
	total := 0.0
	for i, label := range labels {
		votes[label] += weights[i]
		total += weights[i]
	}
	if total == 0 {
		return votes
	}
	for label := range votes {
		votes[label] /= total
	}
	return votes
}

// bestLabel returns the most probable non-UNKNOWN label.
func bestLabel(probs map[LogoLabel]float64) (LogoLabel, float64) {
	best := UnknownLogoLabel
	bestProb := 0.0
	for label, prob := range probs {
		if label == UnknownLogoLabel {
			continue
		}
		if prob > bestProb {
			best = label
			bestProb = prob
		}
	}
	return best, bestProb
}

func (c *logoComponentImpl) thresholds(ctx context.Context) (map[LogoLabel]float64, error) {
	stored, err := c.logoStore.ConfidenceThresholds(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading logo thresholds: %w", err)
	}
	thresholds := make(map[LogoLabel]float64, len(stored))
	for _, item := range stored {
		thresholds[LogoLabel{Type: item.Type, Value: item.Value}] = item.Threshold
	}
	return thresholds, nil
}

func (c *logoComponentImpl) ImportInsights(ctx context.Context, logos []database.LogoAnnotation, serverDomain string) (int, error) {
	thresholds, err := c.thresholds(ctx)
	if err != nil {
		return 0, err
	}

	var groups []types.ProductInsights
	for i := range logos {
		logo := &logos[i]
		probs, err := c.PredictProba(ctx, logo)
		if err != nil {
			return 0, err
		}
		if len(probs) == 0 {
			continue
		}

		label, prob := bestLabel(probs)
		if label == UnknownLogoLabel {
			continue
		}
		threshold, ok := thresholds[label]
		if !ok {
			threshold = defaultLogoThreshold
		}
		if prob < threshold {
			continue
		}

		raw, ok := logoRawInsight(label.Type, label.Value, prob, logo.ID)
		if !ok {
			continue
		}
		image, err := c.logoImage(ctx, logo)
		if err != nil {
			slog.Warn("skipping logo without image", slog.Int64("logo_id", logo.ID), slog.Any("error", err))
			continue
		}
		groups = append(groups, types.ProductInsights{
			Barcode:     image.Barcode,
			Type:        raw.Type,
			SourceImage: image.SourceImage,
			Insights:    []types.RawInsight{raw},
		})
	}

	return c.importer.Import(ctx, groups, serverDomain, true)
}

func (c *logoComponentImpl) Annotate(ctx context.Context, reqs []types.LogoAnnotateRequest, username, serverDomain string) ([]database.LogoAnnotation, error) {
	now := time.Now().UTC()
	var annotated []database.LogoAnnotation
	var groups []types.ProductInsights

	for _, req := range reqs {
		logo, err := c.Get(ctx, req.LogoID)
		if err != nil {
			return nil, err
		}

		logo.AnnotationType = req.Type
		logo.AnnotationValue = req.Value
		logo.TaxonomyValue = req.Value
		logo.Username = username
		logo.CompletedAt = &now
		if err := c.logoStore.Update(ctx, logo); err != nil {
			return nil, fmt.Errorf("updating logo %d: %w", logo.ID, err)
		}
		annotated = append(annotated, *logo)

		raw, ok := logoRawInsight(req.Type, req.Value, 1.0, logo.ID)
		if !ok {
			continue
		}
		image, err := c.logoImage(ctx, logo)
		if err != nil {
			slog.Warn("no image for annotated logo", slog.Int64("logo_id", logo.ID), slog.Any("error", err))
			continue
		}

		processable, err := isAutomaticallyProcessable(ctx, c.products, image.Barcode, image.SourceImage, annotatedLogoMaxImageAge)
		if err != nil {
			if errors.Is(err, ErrInvalidInsight) {
				continue
			}
			return nil, err
		}
		raw.AutomaticProcessing = processable
		if processable {
			raw.Data["notify"] = true
		}

		groups = append(groups, types.ProductInsights{
			Barcode:     image.Barcode,
			Type:        raw.Type,
			SourceImage: image.SourceImage,
			Insights:    []types.RawInsight{raw},
		})
	}

	if len(groups) > 0 {
		imported, err := c.importer.Import(ctx, groups, serverDomain, true)
		if err != nil {
			return nil, err
		}
		if imported > 0 {
			slog.Info("logo insights imported after annotation", slog.Int("count", imported))
		}
	}
	return annotated, nil
}

func (c *logoComponentImpl) logoImage(ctx context.Context, logo *database.LogoAnnotation) (*database.ImageModel, error) {
	if logo.ImagePrediction != nil && logo.ImagePrediction.Image != nil {
		return logo.ImagePrediction.Image, nil
	}
	prediction, err := c.imageStore.GetPrediction(ctx, logo.ImagePredictionID)
	if err != nil {
		return nil, fmt.Errorf("loading image prediction %d: %w", logo.ImagePredictionID, err)
	}
	if prediction.Image == nil {
		return nil, fmt.Errorf("image prediction %d has no image", logo.ImagePredictionID)
	}
	return prediction.Image, nil
}

// logoRawInsight builds the insight candidate for a classified or annotated
// logo. Only brand and label logos generate insights.
func logoRawInsight(logoType, logoValue string, confidence float64, logoID int64) (types.RawInsight, bool) {
	insightType, ok := logoTypeMapping[logoType]
	if !ok || logoValue == "" {
		return types.RawInsight{}, false
	}

	raw := types.RawInsight{
		Type:      insightType,
		Predictor: "universal-logo-detector",
		Data: map[string]any{
			"confidence": confidence,
			"logo_id":    logoID,
		},
	}
	switch insightType {
	case types.InsightTypeBrand:
		raw.Value = logoValue
	case types.InsightTypeLabel:
		raw.ValueTag = logoValue
	}
	return raw, true
}
