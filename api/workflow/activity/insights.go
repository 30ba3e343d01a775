package activity

import (
	"context"
	"log/slog"

	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/component"
)

func newInsightComponent(config *config.Config) (component.InsightComponent, error) {
	products, err := component.NewProductComponent(config)
	if err != nil {
		return nil, err
	}
	annotator := component.NewAnnotatorComponent(config, products)
	return component.NewInsightComponent(config, products, annotator)
}

func ProcessInsights(ctx context.Context, config *config.Config) error {
	c, err := newInsightComponent(config)
	if err != nil {
		slog.Error("failed to create insight component", "err", err)
		return err
	}
	processed, err := c.ProcessInsights(ctx)
	if err != nil {
		return err
	}
	slog.Info("due insights processed", slog.Int("count", processed))
	return nil
}

func MarkInsights(ctx context.Context, config *config.Config) error {
	c, err := newInsightComponent(config)
	if err != nil {
		slog.Error("failed to create insight component", "err", err)
		return err
	}
	marked, err := c.MarkInsights(ctx)
	if err != nil {
		return err
	}
	slog.Info("automatic insights marked", slog.Int("count", marked))
	return nil
}

func RefreshInsights(ctx context.Context, config *config.Config) error {
	c, err := newInsightComponent(config)
	if err != nil {
		slog.Error("failed to create insight component", "err", err)
		return err
	}
	deleted, updated, err := c.RefreshInsights(ctx)
	if err != nil {
		return err
	}
	slog.Info("pending insights refreshed",
		slog.Int("deleted", deleted), slog.Int("updated", updated))
	return nil
}

func DownloadDataset(ctx context.Context, config *config.Config) error {
	c, err := component.NewDatasetComponent(config)
	if err != nil {
		slog.Error("failed to create dataset component", "err", err)
		return err
	}
	refreshed, err := c.RefreshDataset(ctx)
	if err != nil {
		return err
	}
	if !refreshed {
		slog.Info("product dataset is up to date")
	}
	return nil
}
