package component

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openfoodhub/insight-server/builder/productsvc"
	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
)

// AnnotateParams carries everything surrounding the verdict itself.
type AnnotateParams struct {
	Annotation int
	// Update controls whether an accepted insight is written back to the
	// product service.
	Update bool
	Data   map[string]any
	Auth   *productsvc.Auth
	// Automatic marks verdicts issued by the scheduler rather than a
	// human.
	Automatic bool
}

type AnnotatorComponent interface {
	// Annotate records the verdict and, for accepted insights, applies it
	// to the product service. The verdict and the write-back happen in
	// one transaction: a failed write-back leaves the insight pending.
	Annotate(ctx context.Context, insight *database.ProductInsight, params AnnotateParams) (types.AnnotationResult, error)
	// Supported reports whether insights of the given type can be
	// applied to the product service.
	Supported(insightType types.InsightType) bool
}

type annotatorComponentImpl struct {
	insightStore database.ProductInsightStore
	products     ProductComponent
	client       productsvc.Client
}

func NewAnnotatorComponent(cfg *config.Config, products ProductComponent) AnnotatorComponent {
	return &annotatorComponentImpl{
		insightStore: database.NewProductInsightStore(),
		products:     products,
		client:       productsvc.NewClient(cfg),
	}
}

// annotatableTypes are the insight types with a write-back procedure. Types
// outside this set (image flags, orientation, traces) only exist for review
// and are stored latent.
var annotatableTypes = map[types.InsightType]struct{}{
	types.InsightTypeIngredientSpellcheck:    {},
	types.InsightTypePackagerCode:            {},
	types.InsightTypeLabel:                   {},
	types.InsightTypeCategory:                {},
	types.InsightTypeProductWeight:           {},
	types.InsightTypeExpirationDate:          {},
	types.InsightTypeBrand:                   {},
	types.InsightTypeStore:                   {},
	types.InsightTypePackaging:               {},
	types.InsightTypeNutritionImage:          {},
	types.InsightTypeNutritionTableStructure: {},
}

func (a *annotatorComponentImpl) Supported(insightType types.InsightType) bool {
	_, ok := annotatableTypes[insightType]
	return ok
}

func (a *annotatorComponentImpl) Annotate(ctx context.Context, insight *database.ProductInsight, params AnnotateParams) (types.AnnotationResult, error) {
	if insight.Latent {
		return types.LatentInsightResult, nil
	}
	if !a.Supported(insight.Type) {
		return types.UnknownInsightResult, nil
	}
	if insight.Type == types.InsightTypeNutritionTableStructure && params.Data == nil {
		return types.DataRequiredResult, nil
	}

	now := time.Now().UTC()
	annotation := params.Annotation
	insight.Annotation = &annotation
	insight.CompletedAt = &now
	if params.Auth != nil {
		insight.Username = params.Auth.Username
	}
	if params.Automatic {
		insight.AutomaticProcessing = true
	}
	if insight.Type == types.InsightTypeNutritionTableStructure &&
		params.Annotation == types.AnnotationAccept && params.Update {
		if insight.Data == nil {
			insight.Data = map[string]any{}
		}
		insight.Data["annotation"] = params.Data
	}

	result := types.SavedAnnotationResult
	err := a.insightStore.AnnotateInTx(ctx, insight, func(ctx context.Context) error {
		if params.Annotation != types.AnnotationAccept || !params.Update {
			return nil
		}
		var err error
		result, err = a.apply(ctx, insight, params)
		return err
	})
	if err != nil {
		return types.AnnotationResult{}, fmt.Errorf("annotating insight %s: %w", insight.ID, err)
	}
	return result, nil
}

func (a *annotatorComponentImpl) apply(ctx context.Context, insight *database.ProductInsight, params AnnotateParams) (types.AnnotationResult, error) {
	opts := productsvc.UpdateOptions{
		InsightID:    insight.ID.String(),
		ServerDomain: insight.ServerDomain,
		Auth:         params.Auth,
	}

	switch insight.Type {
	case types.InsightTypePackagerCode:
		return a.applyPackagerCode(ctx, insight, opts)
	case types.InsightTypeLabel:
		return a.applyTag(ctx, insight, opts, "labels_tags", func() error {
			return a.client.AddLabelTag(ctx, insight.Barcode, insight.ValueTag, opts)
		})
	case types.InsightTypeCategory:
		return a.applyTag(ctx, insight, opts, "categories_tags", func() error {
			return a.client.AddCategory(ctx, insight.Barcode, insight.ValueTag, opts)
		})
	case types.InsightTypeStore:
		return a.applyTag(ctx, insight, opts, "stores_tags", func() error {
			return a.client.AddStore(ctx, insight.Barcode, insight.Value, opts)
		})
	case types.InsightTypePackaging:
		return a.applyTag(ctx, insight, opts, "packaging_tags", func() error {
			return a.client.AddPackaging(ctx, insight.Barcode, insight.Value, opts)
		})
	case types.InsightTypeBrand:
		return a.applyBrand(ctx, insight, opts)
	case types.InsightTypeProductWeight:
		return a.applyProductWeight(ctx, insight, opts)
	case types.InsightTypeExpirationDate:
		return a.applyExpirationDate(ctx, insight, opts)
	case types.InsightTypeIngredientSpellcheck:
		return a.applySpellcheck(ctx, insight, opts)
	case types.InsightTypeNutritionImage:
		return a.applyNutritionImage(ctx, insight, opts)
	case types.InsightTypeNutritionTableStructure:
		// the structure annotation is stored on the insight itself, which
		// the enclosing transaction already saved
		return types.SavedAnnotationResult, nil
	default:
		return types.UnknownInsightResult, nil
	}
}

// applyTag handles the common shape: fetch one tag list, bail out when the
// value is already present, otherwise post the addition.
func (a *annotatorComponentImpl) applyTag(ctx context.Context, insight *database.ProductInsight, _ productsvc.UpdateOptions, field string, post func() error) (types.AnnotationResult, error) {
	product, err := a.products.GetProduct(ctx, insight.Barcode, []string{field})
	if err != nil {
		return types.AnnotationResult{}, err
	}
	if product == nil {
		return types.MissingProductResult, nil
	}

	var tags []string
	switch field {
	case "labels_tags":
		tags = product.LabelsTags
	case "categories_tags":
		tags = product.CategoriesTags
	case "stores_tags":
		tags = product.StoresTags
	case "packaging_tags":
		tags = product.PackagingTags
	}
	for _, tag := range tags {
		if tag == insight.ValueTag {
			return types.AlreadyAnnotatedResult, nil
		}
	}

	if err := post(); err != nil {
		return types.AnnotationResult{}, err
	}
	return types.UpdatedAnnotationResult, nil
}

func (a *annotatorComponentImpl) applyBrand(ctx context.Context, insight *database.ProductInsight, opts productsvc.UpdateOptions) (types.AnnotationResult, error) {
	product, err := a.products.GetProduct(ctx, insight.Barcode, []string{"brands_tags"})
	if err != nil {
		return types.AnnotationResult{}, err
	}
	if product == nil {
		return types.MissingProductResult, nil
	}
	if err := a.client.AddBrand(ctx, insight.Barcode, insight.Value, opts); err != nil {
		return types.AnnotationResult{}, err
	}
	return types.UpdatedAnnotationResult, nil
}

func (a *annotatorComponentImpl) applyPackagerCode(ctx context.Context, insight *database.ProductInsight, opts productsvc.UpdateOptions) (types.AnnotationResult, error) {
	product, err := a.products.GetProduct(ctx, insight.Barcode, []string{"emb_codes"})
	if err != nil {
		return types.AnnotationResult{}, err
	}
	if product == nil {
		return types.MissingProductResult, nil
	}

	var embCodes []string
	if product.EmbCodes != "" {
		embCodes = strings.Split(product.EmbCodes, ",")
	}
	normalized := normalizeEMBCode(insight.Value)
	for _, code := range embCodes {
		if normalizeEMBCode(code) == normalized {
			return types.AlreadyAnnotatedResult, nil
		}
	}

	embCodes = append(embCodes, insight.Value)
	if err := a.client.UpdateEmbCodes(ctx, insight.Barcode, embCodes, opts); err != nil {
		return types.AnnotationResult{}, err
	}
	return types.UpdatedAnnotationResult, nil
}

func (a *annotatorComponentImpl) applyProductWeight(ctx context.Context, insight *database.ProductInsight, opts productsvc.UpdateOptions) (types.AnnotationResult, error) {
	product, err := a.products.GetProduct(ctx, insight.Barcode, []string{"quantity"})
	if err != nil {
		return types.AnnotationResult{}, err
	}
	if product == nil {
		return types.MissingProductResult, nil
	}
	if product.Quantity != "" {
		return types.AlreadyAnnotatedResult, nil
	}
	if err := a.client.UpdateQuantity(ctx, insight.Barcode, insight.Value, opts); err != nil {
		return types.AnnotationResult{}, err
	}
	return types.UpdatedAnnotationResult, nil
}

func (a *annotatorComponentImpl) applyExpirationDate(ctx context.Context, insight *database.ProductInsight, opts productsvc.UpdateOptions) (types.AnnotationResult, error) {
	product, err := a.products.GetProduct(ctx, insight.Barcode, []string{"expiration_date"})
	if err != nil {
		return types.AnnotationResult{}, err
	}
	if product == nil {
		return types.MissingProductResult, nil
	}
	if product.ExpirationDate != "" {
		return types.AlreadyAnnotatedResult, nil
	}
	if err := a.client.UpdateExpirationDate(ctx, insight.Barcode, insight.Value, opts); err != nil {
		return types.AnnotationResult{}, err
	}
	return types.UpdatedAnnotationResult, nil
}

func (a *annotatorComponentImpl) applySpellcheck(ctx context.Context, insight *database.ProductInsight, opts productsvc.UpdateOptions) (types.AnnotationResult, error) {
	lang, _ := insight.Data["lang"].(string)
	field := "ingredients_text_" + lang
	product, err := a.products.GetProduct(ctx, insight.Barcode, []string{field})
	if err != nil {
		return types.AnnotationResult{}, err
	}
	if product == nil {
		return types.MissingProductResult, nil
	}

	original, _ := insight.Data["text"].(string)
	corrected, _ := insight.Data["corrected"].(string)
	if product.IngredientsText[lang] != original {
		slog.Warn("ingredients changed since spellcheck insight creation",
			slog.String("barcode", insight.Barcode), slog.String("lang", lang))
		return types.AnnotationResult{
			Status:      types.AnnotationStatusUpdatedProduct,
			Description: "the ingredient list has been updated since spellcheck",
		}, nil
	}

	if err := a.client.SaveIngredients(ctx, insight.Barcode, corrected, lang, opts); err != nil {
		return types.AnnotationResult{}, err
	}
	return types.UpdatedAnnotationResult, nil
}

func (a *annotatorComponentImpl) applyNutritionImage(ctx context.Context, insight *database.ProductInsight, opts productsvc.UpdateOptions) (types.AnnotationResult, error) {
	product, err := a.products.GetProduct(ctx, insight.Barcode, []string{"code"})
	if err != nil {
		return types.AnnotationResult{}, err
	}
	if product == nil {
		return types.MissingProductResult, nil
	}

	imageID := ImageID(insight.SourceImage)
	if imageID == "" {
		return types.AnnotationResult{
			Status:      types.AnnotationStatusInvalidImage,
			Description: "the image is invalid",
		}, nil
	}

	rotate := 0
	if rotation, ok := insight.Data["rotation"].(float64); ok {
		rotate = int(rotation)
	}
	imageKey := "nutrition_" + insight.ValueTag
	if err := a.client.SelectRotateImage(ctx, insight.Barcode, imageID, imageKey, rotate, opts); err != nil {
		return types.AnnotationResult{}, err
	}
	return types.UpdatedAnnotationResult, nil
}

// normalizeEMBCode puts a packager code into a canonical comparable form.
func normalizeEMBCode(code string) string {
	code = strings.ToLower(code)
	var b strings.Builder
	for _, r := range code {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if strings.HasSuffix(normalized, "ce") {
		normalized = strings.TrimSuffix(normalized, "ce") + "ec"
	}
	return normalized
}
