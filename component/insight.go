package component

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openfoodhub/insight-server/builder/productsvc"
	"github.com/openfoodhub/insight-server/builder/prometheus"
	"github.com/openfoodhub/insight-server/builder/store/cache"
	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
	"github.com/openfoodhub/insight-server/component/ocr"
)

var ErrInsightNotFound = errors.New("insight not found")

type InsightComponent interface {
	Random(ctx context.Context, query types.RandomInsightQuery) ([]database.ProductInsight, error)
	ByBarcode(ctx context.Context, barcode string) ([]database.ProductInsight, error)
	Get(ctx context.Context, id uuid.UUID) (*database.ProductInsight, error)
	// Annotate records a human verdict on one insight.
	Annotate(ctx context.Context, req types.AnnotateRequest, auth *productsvc.Auth) (types.AnnotationResult, error)
	// PredictOCR runs the OCR extractors over the submitted payload and
	// returns the candidates without storing them.
	PredictOCR(ctx context.Context, req types.PredictOCRRequest) ([]types.RawInsight, error)
	Counts(ctx context.Context) (map[types.InsightType]int, error)

	// ProcessInsights applies every due automatic insight.
	ProcessInsights(ctx context.Context) (int, error)
	// MarkInsights schedules unmarked automatic insights for processing.
	MarkInsights(ctx context.Context) (int, error)
	// RefreshInsights re-syncs pending insights with the product
	// database, deleting those whose product is gone.
	RefreshInsights(ctx context.Context) (deleted, updated int, err error)
	// ApplyType bulk-annotates pending insights of one type whose source
	// image is at most maxImageAge older than the product's newest image.
	ApplyType(ctx context.Context, insightType types.InsightType, maxImageAge time.Duration) (int, error)
}

type insightComponentImpl struct {
	insightStore database.ProductInsightStore
	annotator    AnnotatorComponent
	products     ProductComponent
	cache        cache.RedisClient
	hc           *http.Client
	serverDomain string
	processDelay time.Duration
}

func NewInsightComponent(cfg *config.Config, products ProductComponent, annotator AnnotatorComponent) (InsightComponent, error) {
	redis, err := cache.NewCache(context.Background(), cache.RedisConfig{
		Addr:               cfg.Redis.Endpoint,
		Username:           cfg.Redis.User,
		Password:           cfg.Redis.Password,
		MaxRetries:         cfg.Redis.MaxRetries,
		MinIdleConnections: cfg.Redis.MinIdleConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing redis: %w", err)
	}
	return &insightComponentImpl{
		insightStore: database.NewProductInsightStore(),
		annotator:    annotator,
		products:     products,
		cache:        redis,
		hc:           &http.Client{Timeout: 30 * time.Second},
		serverDomain: cfg.ProductService.ServerDomain,
		processDelay: time.Duration(cfg.Insights.ProcessDelayMinutes) * time.Minute,
	}, nil
}

func (c *insightComponentImpl) Random(ctx context.Context, query types.RandomInsightQuery) ([]database.ProductInsight, error) {
	if query.Count <= 0 {
		query.Count = 1
	}
	if query.Count > 50 {
		query.Count = 50
	}
	return c.insightStore.Random(ctx, database.PendingInsightFilter{
		Type:     query.Type,
		Country:  query.Country,
		Brand:    query.Brand,
		ValueTag: query.ValueTag,
		Count:    query.Count,
	})
}

func (c *insightComponentImpl) ByBarcode(ctx context.Context, barcode string) ([]database.ProductInsight, error) {
	return c.insightStore.ByBarcode(ctx, barcode)
}

func (c *insightComponentImpl) Get(ctx context.Context, id uuid.UUID) (*database.ProductInsight, error) {
	insight, err := c.insightStore.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsightNotFound
		}
		return nil, err
	}
	return insight, nil
}

func (c *insightComponentImpl) Annotate(ctx context.Context, req types.AnnotateRequest, auth *productsvc.Auth) (types.AnnotationResult, error) {
	insight, err := c.Get(ctx, req.InsightID)
	if err != nil {
		if errors.Is(err, ErrInsightNotFound) {
			return types.UnknownInsightResult, nil
		}
		return types.AnnotationResult{}, err
	}
	if insight.Annotated() {
		return types.AlreadyAnnotatedResult, nil
	}

	update := true
	if req.Update != nil {
		update = *req.Update
	}
	result, err := c.annotator.Annotate(ctx, insight, AnnotateParams{
		Annotation: req.Annotation,
		Update:     update,
		Data:       req.Data,
		Auth:       auth,
	})
	if err != nil {
		return types.AnnotationResult{}, err
	}

	if err := c.cache.SRem(ctx, needValidationSetKey, insight.ID.String()); err != nil {
		slog.Warn("clearing validation marker failed", slog.Any("error", err))
	}
	prometheus.AnnotationsTotal.WithLabelValues(string(insight.Type), string(result.Status)).Inc()
	return result, nil
}

func (c *insightComponentImpl) PredictOCR(ctx context.Context, req types.PredictOCRRequest) ([]types.RawInsight, error) {
	var result *ocr.Result
	var err error
	switch {
	case req.OCR != nil:
		result, err = ocr.ParseMap(req.OCR)
	case req.OCRURL != "":
		result, err = c.fetchOCR(ctx, req.OCRURL)
	default:
		return nil, errors.New("either ocr or ocr_url must be provided")
	}
	if err != nil {
		return nil, err
	}

	if len(req.Types) == 0 {
		return ocr.ExtractAll(result), nil
	}
	var insights []types.RawInsight
	for _, insightType := range req.Types {
		extractor := ocr.ExtractorFor(insightType)
		if extractor == nil {
			return nil, fmt.Errorf("no OCR extractor for type %q", insightType)
		}
		insights = append(insights, extractor(result)...)
	}
	return insights, nil
}

func (c *insightComponentImpl) fetchOCR(ctx context.Context, url string) (*ocr.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching OCR payload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching OCR payload: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading OCR payload: %w", err)
	}
	return ocr.Parse(body)
}

func (c *insightComponentImpl) Counts(ctx context.Context) (map[types.InsightType]int, error) {
	return c.insightStore.CountByType(ctx)
}

func (c *insightComponentImpl) ProcessInsights(ctx context.Context) (int, error) {
	due, err := c.insightStore.PendingDue(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		insight := &due[i]
		slog.Info("processing automatic insight",
			slog.String("id", insight.ID.String()),
			slog.String("barcode", insight.Barcode),
			slog.String("type", string(insight.Type)))
		result, err := c.annotator.Annotate(ctx, insight, AnnotateParams{
			Annotation: types.AnnotationAccept,
			Update:     true,
		})
		if err != nil {
			slog.Error("processing insight failed",
				slog.String("id", insight.ID.String()), slog.Any("error", err))
			continue
		}
		processed++
		prometheus.AnnotationsTotal.WithLabelValues(string(insight.Type), string(result.Status)).Inc()
	}
	return processed, nil
}

func (c *insightComponentImpl) MarkInsights(ctx context.Context) (int, error) {
	unmarked, err := c.insightStore.AutomaticUnmarked(ctx)
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range unmarked {
		insight := &unmarked[i]
		processAfter := time.Now().UTC().Add(c.processDelay)
		insight.ProcessAfter = &processAfter
		if err := c.insightStore.Update(ctx, insight); err != nil {
			return marked, err
		}
		slog.Info("insight scheduled for automatic processing",
			slog.String("id", insight.ID.String()),
			slog.String("barcode", insight.Barcode))
		marked++
	}
	return marked, nil
}

func (c *insightComponentImpl) RefreshInsights(ctx context.Context) (int, int, error) {
	threshold := time.Now().UTC().Truncate(24 * time.Hour)
	pending, err := c.insightStore.PendingOlderThan(ctx, threshold, c.serverDomain)
	if err != nil {
		return 0, 0, err
	}

	deleted, updated := 0, 0
	for i := range pending {
		insight := &pending[i]
		product, err := c.products.GetProductFresh(ctx, insight.Barcode, []string{"brands_tags", "countries_tags", "unique_scans_n"})
		if err != nil {
			slog.Error("refreshing insight failed",
				slog.String("id", insight.ID.String()), slog.Any("error", err))
			continue
		}

		if product == nil {
			slog.Info("product deleted upstream, deleting insight",
				slog.String("id", insight.ID.String()), slog.String("barcode", insight.Barcode))
			if err := c.insightStore.Delete(ctx, insight.ID); err != nil {
				return deleted, updated, err
			}
			deleted++
			continue
		}

		if refreshInsightAttributes(insight, product) {
			if err := c.insightStore.Update(ctx, insight); err != nil {
				return deleted, updated, err
			}
			updated++
		}
	}
	return deleted, updated, nil
}

func (c *insightComponentImpl) ApplyType(ctx context.Context, insightType types.InsightType, maxImageAge time.Duration) (int, error) {
	pending, err := c.insightStore.PendingByTypeRandomOrder(ctx, insightType)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	applied := 0
	for i := range pending {
		insight := &pending[i]
		if insight.ProcessAfter != nil && insight.ProcessAfter.After(now) {
			continue
		}

		processable, err := isAutomaticallyProcessable(ctx, c.products, insight.Barcode, insight.SourceImage, maxImageAge)
		if err != nil {
			if errors.Is(err, ErrInvalidInsight) {
				slog.Info("deleting invalid insight", slog.String("id", insight.ID.String()))
				if err := c.insightStore.Delete(ctx, insight.ID); err != nil {
					return applied, err
				}
				continue
			}
			return applied, err
		}
		if !processable {
			continue
		}

		if _, err := c.annotator.Annotate(ctx, insight, AnnotateParams{
			Annotation: types.AnnotationAccept,
			Update:     true,
			Automatic:  true,
		}); err != nil {
			slog.Error("applying insight failed",
				slog.String("id", insight.ID.String()), slog.Any("error", err))
			continue
		}
		applied++
	}
	return applied, nil
}

// refreshInsightAttributes syncs the denormalized product attributes on the
// insight, reporting whether anything changed.
func refreshInsightAttributes(insight *database.ProductInsight, product *productsvc.Product) bool {
	changed := false
	if !equalStrings(insight.Brands, product.BrandsTags) {
		insight.Brands = product.BrandsTags
		changed = true
	}
	if !equalStrings(insight.Countries, product.CountriesTags) {
		insight.Countries = product.CountriesTags
		changed = true
	}
	if insight.UniqueScansN != product.UniqueScansN {
		insight.UniqueScansN = product.UniqueScansN
		changed = true
	}
	return changed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
