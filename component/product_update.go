package component

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openfoodhub/insight-server/builder/inference"
	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
)

// productUpdateSettleDelay leaves the upstream update that triggered the
// event enough time to finish before the product is re-fetched.
const productUpdateSettleDelay = 10 * time.Second

type ProductUpdateComponent interface {
	// HandleProductUpdated re-predicts categories for the product and
	// drops pending insights the update invalidated.
	HandleProductUpdated(ctx context.Context, event types.ProductEvent) error
}

type productUpdateComponentImpl struct {
	insightStore database.ProductInsightStore
	products     ProductComponent
	importer     ImporterComponent
	inference    inference.Client
	settleDelay  time.Duration
}

func NewProductUpdateComponent(cfg *config.Config, products ProductComponent, importer ImporterComponent) ProductUpdateComponent {
	return &productUpdateComponentImpl{
		insightStore: database.NewProductInsightStore(),
		products:     products,
		importer:     importer,
		inference:    inference.NewClient(cfg),
		settleDelay:  productUpdateSettleDelay,
	}
}

func (c *productUpdateComponentImpl) HandleProductUpdated(ctx context.Context, event types.ProductEvent) error {
	select {
	case <-time.After(c.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	product, err := c.products.GetProductFresh(ctx, event.Barcode, nil)
	if err != nil {
		return fmt.Errorf("fetching updated product %s: %w", event.Barcode, err)
	}
	if product == nil {
		slog.Warn("updated product does not exist", slog.String("barcode", event.Barcode))
		return nil
	}

	if err := c.addCategoryInsight(ctx, event, product.ProductName, product.IngredientsText); err != nil {
		slog.Error("category reprediction failed",
			slog.String("barcode", event.Barcode), slog.Any("error", err))
	}

	deleted, err := c.dropStaleSpellcheckInsights(ctx, event.Barcode, product.IngredientsText)
	if err != nil {
		return err
	}
	if deleted > 0 {
		slog.Info("stale spellcheck insights deleted",
			slog.String("barcode", event.Barcode), slog.Int("count", deleted))
	}
	return nil
}

func (c *productUpdateComponentImpl) addCategoryInsight(ctx context.Context, event types.ProductEvent, productName string, ingredients map[string]string) error {
	if productName == "" {
		return nil
	}

	predictions, err := c.inference.PredictCategories(ctx, productName, ingredients["en"], "en")
	if err != nil {
		return err
	}
	if len(predictions) == 0 {
		return nil
	}

	var insights []types.RawInsight
	for _, prediction := range predictions {
		insights = append(insights, types.RawInsight{
			Type:      types.InsightTypeCategory,
			ValueTag:  prediction.ValueTag,
			Predictor: "neural",
			Data: map[string]any{
				"confidence": prediction.Confidence,
			},
		})
	}

	imported, err := c.importer.Import(ctx, []types.ProductInsights{
		{
			Barcode:  event.Barcode,
			Type:     types.InsightTypeCategory,
			Insights: insights,
		},
	}, event.ServerDomain, false)
	if err != nil {
		return err
	}
	if imported > 0 {
		slog.Info("category insights imported", slog.String("barcode", event.Barcode), slog.Int("count", imported))
	}
	return nil
}

// dropStaleSpellcheckInsights deletes pending spellcheck insights whose
// original ingredient text no longer matches the product.
func (c *productUpdateComponentImpl) dropStaleSpellcheckInsights(ctx context.Context, barcode string, ingredients map[string]string) (int, error) {
	pending, err := c.insightStore.PendingByBarcode(ctx, barcode)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := range pending {
		insight := &pending[i]
		if insight.Type != types.InsightTypeIngredientSpellcheck {
			continue
		}
		lang, _ := insight.Data["lang"].(string)
		original, _ := insight.Data["text"].(string)
		current, ok := ingredients[lang]
		if ok && current == original {
			continue
		}
		if err := c.insightStore.Delete(ctx, insight.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
