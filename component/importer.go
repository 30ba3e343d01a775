package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openfoodhub/insight-server/builder/prometheus"
	"github.com/openfoodhub/insight-server/builder/store/cache"
	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
)

// needValidationSetKey is the redis set holding the IDs of insights waiting
// for a human verdict.
const needValidationSetKey = "insights:need-validation"

type ImporterComponent interface {
	// Import persists the insight candidates, skipping duplicates. With
	// trustAutomatic, candidates flagged for automatic processing keep
	// the flag when their source image passes the recency and selection
	// checks; otherwise every import requires a human verdict.
	Import(ctx context.Context, groups []types.ProductInsights, serverDomain string, trustAutomatic bool) (int, error)
}

type importerComponentImpl struct {
	insightStore database.ProductInsightStore
	products     ProductComponent
	cache        cache.RedisClient
	maxImageAge  time.Duration
}

func NewImporterComponent(cfg *config.Config, products ProductComponent) (ImporterComponent, error) {
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
	return &importerComponentImpl{
		insightStore: database.NewProductInsightStore(),
		products:     products,
		cache:        redis,
		maxImageAge:  time.Duration(cfg.Insights.AutoProcessMaxImageAgeHours) * time.Hour,
	}, nil
}

func (c *importerComponentImpl) Import(ctx context.Context, groups []types.ProductInsights, serverDomain string, trustAutomatic bool) (int, error) {
	var toCreate []*database.ProductInsight
	var pendingIDs []any

	for _, group := range groups {
		product, err := c.products.GetProduct(ctx, group.Barcode, []string{"brands_tags", "countries_tags", "unique_scans_n"})
		if err != nil {
			return 0, fmt.Errorf("fetching product %s: %w", group.Barcode, err)
		}

		for _, raw := range group.Insights {
			insight := &database.ProductInsight{
				ID:              uuid.New(),
				Barcode:         group.Barcode,
				Type:            raw.Type,
				Data:            raw.Data,
				Timestamp:       time.Now().UTC(),
				Value:           raw.Value,
				ValueTag:        raw.ValueTag,
				SourceImage:     group.SourceImage,
				ServerDomain:    serverDomain,
				Predictor:       raw.Predictor,
				ReservedBarcode: IsReservedBarcode(group.Barcode),
				// types without a write-back procedure are stored latent
				Latent: !annotatable(raw.Type),
			}
			if product != nil {
				insight.Brands = product.BrandsTags
				insight.Countries = product.CountriesTags
				insight.UniqueScansN = product.UniqueScansN
			}

			exists, err := c.insightStore.ExistsSimilar(ctx, insight)
			if err != nil {
				return 0, fmt.Errorf("checking for duplicate insight: %w", err)
			}
			if exists {
				continue
			}

			if trustAutomatic && raw.AutomaticProcessing && !insight.Latent {
				processable, err := isAutomaticallyProcessable(ctx, c.products, group.Barcode, group.SourceImage, c.maxImageAge)
				if err != nil {
					if errors.Is(err, ErrInvalidInsight) {
						slog.Info("skipping insight with missing product or image",
							slog.String("barcode", group.Barcode), slog.String("type", string(raw.Type)))
						continue
					}
					return 0, err
				}
				insight.AutomaticProcessing = processable
			}

			toCreate = append(toCreate, insight)
			if !insight.AutomaticProcessing && !insight.Latent {
				pendingIDs = append(pendingIDs, insight.ID.String())
			}
		}
	}

	if len(toCreate) == 0 {
		return 0, nil
	}
	if err := c.insightStore.CreateBatch(ctx, toCreate); err != nil {
		return 0, err
	}
	for _, insight := range toCreate {
		prometheus.InsightsImportedTotal.WithLabelValues(string(insight.Type)).Inc()
	}

	if len(pendingIDs) > 0 {
		if err := c.cache.SAdd(ctx, needValidationSetKey, pendingIDs...); err != nil {
			slog.Warn("marking insights for validation failed", slog.Any("error", err))
		}
	}
	return len(toCreate), nil
}

func annotatable(insightType types.InsightType) bool {
	_, ok := annotatableTypes[insightType]
	return ok
}
