package component

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/openfoodhub/insight-server/builder/productsvc"
	"github.com/openfoodhub/insight-server/builder/store/cache"
	"github.com/openfoodhub/insight-server/common/config"
)

const (
	productCacheTTL       = 5 * time.Minute
	productCacheKeyPrefix = "product:"
)

type ProductComponent interface {
	// GetProduct fetches a product, serving repeated lookups from the
	// cache. A nil product with a nil error means the product does not
	// exist upstream.
	GetProduct(ctx context.Context, barcode string, fields []string) (*productsvc.Product, error)
	// GetProductFresh bypasses the cache.
	GetProductFresh(ctx context.Context, barcode string, fields []string) (*productsvc.Product, error)
}

type productComponentImpl struct {
	client productsvc.Client
	cache  cache.RedisClient
}

func NewProductComponent(cfg *config.Config) (ProductComponent, error) {
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
	return &productComponentImpl{
		client: productsvc.NewClient(cfg),
		cache:  redis,
	}, nil
}

func productCacheKey(barcode string, fields []string) string {
	if len(fields) == 0 {
		return productCacheKeyPrefix + barcode
	}
	return productCacheKeyPrefix + barcode + ":" + strings.Join(fields, ",")
}

func (c *productComponentImpl) GetProduct(ctx context.Context, barcode string, fields []string) (*productsvc.Product, error) {
	key := productCacheKey(barcode, fields)
	if cached, err := c.cache.Get(ctx, key); err == nil && cached != "" {
		var product productsvc.Product
		if err := json.Unmarshal([]byte(cached), &product); err == nil {
			return &product, nil
		}
		slog.Warn("dropping unreadable cached product", slog.String("barcode", barcode))
	}

	product, err := c.client.GetProduct(ctx, barcode, fields)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, nil
	}

	if encoded, err := json.Marshal(product); err == nil {
		if err := c.cache.Set(ctx, key, string(encoded), productCacheTTL); err != nil {
			slog.Warn("caching product failed", slog.String("barcode", barcode), slog.Any("error", err))
		}
	}
	return product, nil
}

func (c *productComponentImpl) GetProductFresh(ctx context.Context, barcode string, fields []string) (*productsvc.Product, error) {
	return c.client.GetProduct(ctx, barcode, fields)
}

// ImageID extracts the numeric image identifier from a source image path
// such as "/325/622/541/0015/1.json" or "/325/622/541/0015/1.jpg". It
// returns an empty string when the path does not reference a raw upload.
func ImageID(sourceImage string) string {
	stem := strings.TrimSuffix(path.Base(sourceImage), path.Ext(sourceImage))
	if stem == "" {
		return ""
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return stem
}

// IsReservedBarcode reports whether the barcode belongs to the reserved
// range used for in-store products.
func IsReservedBarcode(barcode string) bool {
	barcode = strings.TrimLeft(barcode, "0")
	return strings.HasPrefix(barcode, "2")
}
