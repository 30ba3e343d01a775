package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/openfoodhub/insight-server/common/types"
)

// ProductInsight is a candidate fact about a product, waiting for a human or
// automatic verdict.
type ProductInsight struct {
	ID                  uuid.UUID         `bun:"type:uuid,pk" json:"id"`
	Barcode             string            `bun:",notnull" json:"barcode"`
	Type                types.InsightType `bun:",notnull" json:"type"`
	Data                map[string]any    `bun:"type:jsonb" json:"data"`
	Timestamp           time.Time         `bun:",nullzero,notnull,default:current_timestamp" json:"timestamp"`
	CompletedAt         *time.Time        `bun:",nullzero" json:"completed_at,omitempty"`
	// -1 refuse, 0 skip, 1 accept; null while pending
	Annotation          *int       `bun:",nullzero" json:"annotation,omitempty"`
	Latent              bool       `bun:",notnull,default:false" json:"latent"`
	Countries           []string   `bun:",array" json:"countries,omitempty"`
	Brands              []string   `bun:",array" json:"brands,omitempty"`
	ProcessAfter        *time.Time `bun:",nullzero" json:"process_after,omitempty"`
	ValueTag            string     `bun:",nullzero" json:"value_tag,omitempty"`
	Value               string     `bun:",nullzero" json:"value,omitempty"`
	SourceImage         string     `bun:",nullzero" json:"source_image,omitempty"`
	AutomaticProcessing bool       `bun:",notnull,default:false" json:"automatic_processing"`
	ServerDomain        string     `bun:",nullzero" json:"server_domain,omitempty"`
	UniqueScansN        int        `bun:",notnull,default:0" json:"unique_scans_n"`
	ReservedBarcode     bool       `bun:",notnull,default:false" json:"reserved_barcode"`
	Predictor           string     `bun:",nullzero" json:"predictor,omitempty"`
	Username            string     `bun:",nullzero" json:"username,omitempty"`
}

// Annotated reports whether a verdict has been recorded.
func (i *ProductInsight) Annotated() bool {
	return i.Annotation != nil
}

type PendingInsightFilter struct {
	Type     types.InsightType
	Country  string
	Brand    string
	ValueTag string
	Count    int
}

type ProductInsightStore interface {
	Create(ctx context.Context, insight *ProductInsight) error
	CreateBatch(ctx context.Context, insights []*ProductInsight) error
	Get(ctx context.Context, id uuid.UUID) (*ProductInsight, error)
	Update(ctx context.Context, insight *ProductInsight) error
	Delete(ctx context.Context, id uuid.UUID) error
	ByBarcode(ctx context.Context, barcode string) ([]ProductInsight, error)
	Random(ctx context.Context, filter PendingInsightFilter) ([]ProductInsight, error)
	// PendingDue returns non-annotated, non-latent insights whose
	// process_after has passed.
	PendingDue(ctx context.Context, now time.Time) ([]ProductInsight, error)
	// AutomaticUnmarked returns automatic insights waiting to be scheduled.
	AutomaticUnmarked(ctx context.Context) ([]ProductInsight, error)
	PendingByBarcode(ctx context.Context, barcode string) ([]ProductInsight, error)
	PendingOlderThan(ctx context.Context, threshold time.Time, serverDomain string) ([]ProductInsight, error)
	PendingByTypeRandomOrder(ctx context.Context, insightType types.InsightType) ([]ProductInsight, error)
	// ExistsSimilar reports whether a pending insight with the same
	// identity already exists, to avoid duplicate imports.
	ExistsSimilar(ctx context.Context, insight *ProductInsight) (bool, error)
	// AnnotateInTx saves the verdict and runs fn inside the same
	// transaction. If fn fails the verdict is rolled back.
	AnnotateInTx(ctx context.Context, insight *ProductInsight, fn func(ctx context.Context) error) error
	CountByType(ctx context.Context) (map[types.InsightType]int, error)
}

type productInsightStoreImpl struct {
	db *DB
}

func NewProductInsightStore() ProductInsightStore {
	return &productInsightStoreImpl{db: defaultDB}
}

func NewProductInsightStoreWithDB(db *DB) ProductInsightStore {
	return &productInsightStoreImpl{db: db}
}

func (s *productInsightStoreImpl) Create(ctx context.Context, insight *ProductInsight) error {
	if insight.ID == uuid.Nil {
		insight.ID = uuid.New()
	}
	_, err := s.db.Core.NewInsert().Model(insight).Exec(ctx)
	if err != nil {
		return fmt.Errorf("creating insight: %w", err)
	}
	return nil
}

func (s *productInsightStoreImpl) CreateBatch(ctx context.Context, insights []*ProductInsight) error {
	if len(insights) == 0 {
		return nil
	}
	for _, insight := range insights {
		if insight.ID == uuid.Nil {
			insight.ID = uuid.New()
		}
	}
	_, err := s.db.Core.NewInsert().Model(&insights).Exec(ctx)
	if err != nil {
		return fmt.Errorf("creating %d insights: %w", len(insights), err)
	}
	return nil
}

func (s *productInsightStoreImpl) Get(ctx context.Context, id uuid.UUID) (*ProductInsight, error) {
	var insight ProductInsight
	err := s.db.Core.NewSelect().
		Model(&insight).
		Where("product_insight.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &insight, nil
}

func (s *productInsightStoreImpl) Update(ctx context.Context, insight *ProductInsight) error {
	_, err := s.db.Core.NewUpdate().
		Model(insight).
		WherePK().
		Exec(ctx)
	return err
}

func (s *productInsightStoreImpl) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Core.NewDelete().
		Model((*ProductInsight)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *productInsightStoreImpl) ByBarcode(ctx context.Context, barcode string) ([]ProductInsight, error) {
	var insights []ProductInsight
	err := s.db.Core.NewSelect().
		Model(&insights).
		Where("barcode = ?", barcode).
		Order("timestamp DESC").
		Scan(ctx)
	return insights, err
}

func (s *productInsightStoreImpl) Random(ctx context.Context, filter PendingInsightFilter) ([]ProductInsight, error) {
	count := filter.Count
	if count <= 0 {
		count = 1
	}
	var insights []ProductInsight
	q := s.db.Core.NewSelect().
		Model(&insights).
		Where("annotation IS NULL").
		Where("latent = false")
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Country != "" {
		q = q.Where("? = ANY(countries)", filter.Country)
	}
	if filter.Brand != "" {
		q = q.Where("? = ANY(brands)", filter.Brand)
	}
	if filter.ValueTag != "" {
		q = q.Where("value_tag = ?", filter.ValueTag)
	}
	err := q.OrderExpr("random()").
		Limit(count).
		Scan(ctx)
	return insights, err
}

func (s *productInsightStoreImpl) PendingDue(ctx context.Context, now time.Time) ([]ProductInsight, error) {
	var insights []ProductInsight
	err := s.db.Core.NewSelect().
		Model(&insights).
		Where("annotation IS NULL").
		Where("latent = false").
		Where("process_after IS NOT NULL").
		Where("process_after <= ?", now).
		Scan(ctx)
	return insights, err
}

func (s *productInsightStoreImpl) AutomaticUnmarked(ctx context.Context) ([]ProductInsight, error) {
	var insights []ProductInsight
	err := s.db.Core.NewSelect().
		Model(&insights).
		Where("automatic_processing = true").
		Where("latent = false").
		Where("process_after IS NULL").
		Where("annotation IS NULL").
		Scan(ctx)
	return insights, err
}

func (s *productInsightStoreImpl) PendingByBarcode(ctx context.Context, barcode string) ([]ProductInsight, error) {
	var insights []ProductInsight
	err := s.db.Core.NewSelect().
		Model(&insights).
		Where("annotation IS NULL").
		Where("barcode = ?", barcode).
		Scan(ctx)
	return insights, err
}

func (s *productInsightStoreImpl) PendingOlderThan(ctx context.Context, threshold time.Time, serverDomain string) ([]ProductInsight, error) {
	var insights []ProductInsight
	err := s.db.Core.NewSelect().
		Model(&insights).
		Where("annotation IS NULL").
		Where("timestamp <= ?", threshold).
		Where("server_domain = ?", serverDomain).
		Scan(ctx)
	return insights, err
}

func (s *productInsightStoreImpl) PendingByTypeRandomOrder(ctx context.Context, insightType types.InsightType) ([]ProductInsight, error) {
	var insights []ProductInsight
	err := s.db.Core.NewSelect().
		Model(&insights).
		Where("type = ?", insightType).
		Where("annotation IS NULL").
		Where("latent = false").
		OrderExpr("random()").
		Scan(ctx)
	return insights, err
}

func (s *productInsightStoreImpl) ExistsSimilar(ctx context.Context, insight *ProductInsight) (bool, error) {
	q := s.db.Core.NewSelect().
		Model((*ProductInsight)(nil)).
		Where("annotation IS NULL").
		Where("barcode = ?", insight.Barcode).
		Where("type = ?", insight.Type)
	if insight.ValueTag != "" {
		q = q.Where("value_tag = ?", insight.ValueTag)
	}
	if insight.Value != "" {
		q = q.Where("value = ?", insight.Value)
	}
	return q.Exists(ctx)
}

func (s *productInsightStoreImpl) AnnotateInTx(ctx context.Context, insight *ProductInsight, fn func(ctx context.Context) error) error {
	return s.db.Core.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model(insight).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("saving annotation: %w", err)
		}
		if fn != nil {
			return fn(ctx)
		}
		return nil
	})
}

func (s *productInsightStoreImpl) CountByType(ctx context.Context) (map[types.InsightType]int, error) {
	var rows []struct {
		Type  types.InsightType `bun:"type"`
		Count int               `bun:"count"`
	}
	err := s.db.Core.NewSelect().
		Model((*ProductInsight)(nil)).
		ColumnExpr("type, count(*) AS count").
		Group("type").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	counts := make(map[types.InsightType]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}
