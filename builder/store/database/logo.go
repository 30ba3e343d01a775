package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// LogoNearestNeighbors stores the k nearest stored logos of a detected logo,
// as returned by the approximate-nearest-neighbor index.
type LogoNearestNeighbors struct {
	LogoIDs   []int64   `json:"logo_ids"`
	Distances []float64 `json:"distances"`
}

// LogoAnnotation is one logo detected inside an image prediction, possibly
// annotated by a human with a type and value.
type LogoAnnotation struct {
	ID                int64                 `bun:",pk,autoincrement" json:"id"`
	ImagePredictionID int64                 `bun:",notnull" json:"image_prediction_id"`
	ImagePrediction   *ImagePrediction      `bun:"rel:belongs-to,join:image_prediction_id=id" json:"image_prediction,omitempty"`
	Index             int                   `bun:",notnull" json:"index"`
	BoundingBox       []float64             `bun:",array" json:"bounding_box"`
	Score             float64               `bun:",notnull" json:"score"`
	AnnotationValue   string                `bun:",nullzero" json:"annotation_value,omitempty"`
	AnnotationType    string                `bun:",nullzero" json:"annotation_type,omitempty"`
	TaxonomyValue     string                `bun:",nullzero" json:"taxonomy_value,omitempty"`
	Username          string                `bun:",nullzero" json:"username,omitempty"`
	CompletedAt       *time.Time            `bun:",nullzero" json:"completed_at,omitempty"`
	NearestNeighbors  *LogoNearestNeighbors `bun:"type:jsonb" json:"nearest_neighbors,omitempty"`
}

// LogoConfidenceThreshold overrides the default probability threshold for a
// given (type, value) label.
type LogoConfidenceThreshold struct {
	ID        int64   `bun:",pk,autoincrement" json:"id"`
	Type      string  `bun:",notnull" json:"type"`
	Value     string  `bun:",nullzero" json:"value,omitempty"`
	Threshold float64 `bun:",notnull" json:"threshold"`
}

type LogoStore interface {
	Create(ctx context.Context, logo *LogoAnnotation) error
	Get(ctx context.Context, id int64) (*LogoAnnotation, error)
	GetBatch(ctx context.Context, ids []int64) ([]LogoAnnotation, error)
	Update(ctx context.Context, logo *LogoAnnotation) error
	// Annotated returns every logo carrying a human annotation, used to
	// label nearest neighbors.
	Annotated(ctx context.Context) ([]LogoAnnotation, error)
	ConfidenceThresholds(ctx context.Context) ([]LogoConfidenceThreshold, error)
}

type logoStoreImpl struct {
	db *DB
}

func NewLogoStore() LogoStore {
	return &logoStoreImpl{db: defaultDB}
}

func NewLogoStoreWithDB(db *DB) LogoStore {
	return &logoStoreImpl{db: db}
}

func (s *logoStoreImpl) Create(ctx context.Context, logo *LogoAnnotation) error {
	_, err := s.db.Core.NewInsert().Model(logo).Exec(ctx)
	if err != nil {
		return fmt.Errorf("creating logo annotation: %w", err)
	}
	return nil
}

func (s *logoStoreImpl) Get(ctx context.Context, id int64) (*LogoAnnotation, error) {
	var logo LogoAnnotation
	err := s.db.Core.NewSelect().
		Model(&logo).
		Relation("ImagePrediction").
		Relation("ImagePrediction.Image").
		Where("logo_annotation.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &logo, nil
}

func (s *logoStoreImpl) GetBatch(ctx context.Context, ids []int64) ([]LogoAnnotation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var logos []LogoAnnotation
	err := s.db.Core.NewSelect().
		Model(&logos).
		Relation("ImagePrediction").
		Relation("ImagePrediction.Image").
		Where("logo_annotation.id IN (?)", bun.In(ids)).
		Scan(ctx)
	return logos, err
}

func (s *logoStoreImpl) Update(ctx context.Context, logo *LogoAnnotation) error {
	_, err := s.db.Core.NewUpdate().
		Model(logo).
		WherePK().
		Exec(ctx)
	return err
}

func (s *logoStoreImpl) Annotated(ctx context.Context) ([]LogoAnnotation, error) {
	var logos []LogoAnnotation
	err := s.db.Core.NewSelect().
		Model(&logos).
		Column("logo_annotation.id", "logo_annotation.annotation_type", "logo_annotation.annotation_value", "logo_annotation.taxonomy_value").
		Where("annotation_type IS NOT NULL").
		Scan(ctx)
	return logos, err
}

func (s *logoStoreImpl) ConfidenceThresholds(ctx context.Context) ([]LogoConfidenceThreshold, error) {
	var thresholds []LogoConfidenceThreshold
	err := s.db.Core.NewSelect().
		Model(&thresholds).
		Scan(ctx)
	return thresholds, err
}
