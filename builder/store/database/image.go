package database

import (
	"context"
	"fmt"
	"time"
)

// ImageModel records a product image the server has seen.
type ImageModel struct {
	ID           int64     `bun:",pk,autoincrement" json:"id"`
	Barcode      string    `bun:",notnull" json:"barcode"`
	UploadedAt   time.Time `bun:",nullzero" json:"uploaded_at,omitempty"`
	ImageID      string    `bun:",notnull" json:"image_id"`
	SourceImage  string    `bun:",notnull" json:"source_image"`
	Width        int       `bun:",notnull" json:"width"`
	Height       int       `bun:",notnull" json:"height"`
	Deleted      bool      `bun:",notnull,default:false" json:"deleted"`
	ServerDomain string    `bun:",nullzero" json:"server_domain,omitempty"`
	times
}

// ImagePrediction is the raw output of a model run against one image.
type ImagePrediction struct {
	ID            int64          `bun:",pk,autoincrement" json:"id"`
	ImageID       int64          `bun:",notnull" json:"image_id"`
	Image         *ImageModel    `bun:"rel:belongs-to,join:image_id=id" json:"image,omitempty"`
	Type          string         `bun:",notnull" json:"type"`
	ModelName     string         `bun:",notnull" json:"model_name"`
	ModelVersion  string         `bun:",notnull" json:"model_version"`
	Data          map[string]any `bun:"type:jsonb" json:"data"`
	Timestamp     time.Time      `bun:",nullzero,notnull,default:current_timestamp" json:"timestamp"`
	MaxConfidence *float64       `bun:",nullzero" json:"max_confidence,omitempty"`
}

type ImageStore interface {
	Create(ctx context.Context, image *ImageModel) error
	Get(ctx context.Context, id int64) (*ImageModel, error)
	GetBySourceImage(ctx context.Context, sourceImage string) (*ImageModel, error)
	CreatePrediction(ctx context.Context, prediction *ImagePrediction) error
	GetPrediction(ctx context.Context, id int64) (*ImagePrediction, error)
}

type imageStoreImpl struct {
	db *DB
}

func NewImageStore() ImageStore {
	return &imageStoreImpl{db: defaultDB}
}

func NewImageStoreWithDB(db *DB) ImageStore {
	return &imageStoreImpl{db: db}
}

func (s *imageStoreImpl) Create(ctx context.Context, image *ImageModel) error {
	_, err := s.db.Core.NewInsert().Model(image).Exec(ctx)
	if err != nil {
		return fmt.Errorf("creating image: %w", err)
	}
	return nil
}

func (s *imageStoreImpl) Get(ctx context.Context, id int64) (*ImageModel, error) {
	var image ImageModel
	err := s.db.Core.NewSelect().
		Model(&image).
		Where("image_model.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (s *imageStoreImpl) GetBySourceImage(ctx context.Context, sourceImage string) (*ImageModel, error) {
	var image ImageModel
	err := s.db.Core.NewSelect().
		Model(&image).
		Where("source_image = ?", sourceImage).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (s *imageStoreImpl) CreatePrediction(ctx context.Context, prediction *ImagePrediction) error {
	_, err := s.db.Core.NewInsert().Model(prediction).Exec(ctx)
	if err != nil {
		return fmt.Errorf("creating image prediction: %w", err)
	}
	return nil
}

func (s *imageStoreImpl) GetPrediction(ctx context.Context, id int64) (*ImagePrediction, error) {
	var prediction ImagePrediction
	err := s.db.Core.NewSelect().
		Model(&prediction).
		Relation("Image").
		Where("image_prediction.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &prediction, nil
}
