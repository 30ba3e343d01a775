package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openfoodhub/insight-server/builder/store/cache"
	"github.com/openfoodhub/insight-server/builder/store/s3"
	"github.com/openfoodhub/insight-server/common/config"
)

const (
	datasetObjectKey  = "datasets/products.jsonl.gz"
	datasetETagKey    = "dataset:etag"
	datasetRefreshKey = "dataset:refresh"
)

type DatasetComponent interface {
	// RefreshDataset downloads the product dataset dump into the object
	// store when the upstream copy changed. A distributed lock keeps
	// concurrent cron workers from downloading twice.
	RefreshDataset(ctx context.Context) (bool, error)
}

type datasetComponentImpl struct {
	s3Client s3.Client
	cache    cache.RedisClient
	hc       *http.Client
	url      string
}

func NewDatasetComponent(cfg *config.Config) (DatasetComponent, error) {
	s3Client, err := s3.NewMinio(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing object store: %w", err)
	}
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
	return &datasetComponentImpl{
		s3Client: s3Client,
		cache:    redis,
		hc:       &http.Client{Timeout: 30 * time.Minute},
		url:      cfg.Dataset.JSONLURL,
	}, nil
}

func (c *datasetComponentImpl) RefreshDataset(ctx context.Context) (bool, error) {
	refreshed := false
	err := c.cache.RunWhileLocked(ctx, datasetRefreshKey, 30*time.Minute, func(ctx context.Context) error {
		changed, etag, err := c.hasDatasetChanged(ctx)
		if err != nil {
			return err
		}
		if !changed {
			slog.Info("product dataset unchanged, skipping download")
			return nil
		}

		if err := c.fetchDataset(ctx); err != nil {
			return err
		}
		if etag != "" {
			if err := c.cache.Set(ctx, datasetETagKey, etag, 0); err != nil {
				slog.Warn("storing dataset etag failed", slog.Any("error", err))
			}
		}
		refreshed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrLockNotAcquired) {
			slog.Info("dataset refresh already running elsewhere")
			return false, nil
		}
		return false, err
	}
	return refreshed, nil
}

func (c *datasetComponentImpl) hasDatasetChanged(ctx context.Context) (bool, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return false, "", err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("checking dataset version: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("checking dataset version: unexpected status %d", resp.StatusCode)
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		// no version information, always refresh
		return true, "", nil
	}
	stored, err := c.cache.Get(ctx, datasetETagKey)
	if err != nil {
		return true, etag, nil
	}
	return stored != etag, etag, nil
}

func (c *datasetComponentImpl) fetchDataset(ctx context.Context) error {
	slog.Info("downloading product dataset", slog.String("url", c.url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("downloading dataset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading dataset: unexpected status %d", resp.StatusCode)
	}

	if err := c.s3Client.PutObject(ctx, datasetObjectKey, resp.Body, resp.ContentLength, "application/gzip"); err != nil {
		return fmt.Errorf("storing dataset: %w", err)
	}
	slog.Info("product dataset stored", slog.String("key", datasetObjectKey))
	return nil
}
