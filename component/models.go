package component

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openfoodhub/insight-server/builder/store/s3"
	"github.com/openfoodhub/insight-server/common/config"
)

// modelArtifact is one model weight file published as a release asset.
type modelArtifact struct {
	// Release is the "<model>-<version>" release the asset belongs to.
	Release string
	File    string
}

var modelArtifacts = []modelArtifact{
	{Release: "tf-universal-logo-detector-1.0", File: "saved_model.tar.gz"},
	{Release: "tf-nutrition-table-1.0", File: "saved_model.tar.gz"},
	{Release: "keras-category-classifier-xx-2.0", File: "saved_model.tar.gz"},
	{Release: "keras-category-classifier-xx-2.0", File: "category_taxonomy.json"},
}

type ModelComponent interface {
	// DownloadModels mirrors the model weight artifacts into the object
	// store, skipping artifacts that are already present.
	DownloadModels(ctx context.Context) (int, error)
}

type modelComponentImpl struct {
	s3Client s3.Client
	hc       *http.Client
	baseURL  string
}

func NewModelComponent(cfg *config.Config) (ModelComponent, error) {
	s3Client, err := s3.NewMinio(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing object store: %w", err)
	}
	return &modelComponentImpl{
		s3Client: s3Client,
		hc:       &http.Client{Timeout: 30 * time.Minute},
		baseURL:  cfg.Models.WeightsBaseURL,
	}, nil
}

func (c *modelComponentImpl) DownloadModels(ctx context.Context) (int, error) {
	downloaded := 0
	for _, artifact := range modelArtifacts {
		objectKey := fmt.Sprintf("models/%s/%s", artifact.Release, artifact.File)
		exists, err := c.s3Client.ObjectExists(ctx, objectKey)
		if err != nil {
			return downloaded, fmt.Errorf("checking %s: %w", objectKey, err)
		}
		if exists {
			slog.Debug("model artifact already present", slog.String("key", objectKey))
			continue
		}

		if err := c.downloadArtifact(ctx, artifact, objectKey); err != nil {
			return downloaded, err
		}
		downloaded++
	}
	return downloaded, nil
}

func (c *modelComponentImpl) downloadArtifact(ctx context.Context, artifact modelArtifact, objectKey string) error {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, artifact.Release, artifact.File)
	slog.Info("downloading model artifact", slog.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := c.s3Client.PutObject(ctx, objectKey, resp.Body, resp.ContentLength, "application/octet-stream"); err != nil {
		return fmt.Errorf("storing %s: %w", objectKey, err)
	}
	slog.Info("model artifact stored", slog.String("key", objectKey))
	return nil
}
