package types

import (
	"time"

	"github.com/google/uuid"
)

// InsightType identifies the kind of fact an insight asserts about a product.
type InsightType string

const (
	InsightTypeIngredientSpellcheck    InsightType = "ingredient_spellcheck"
	InsightTypePackagerCode            InsightType = "packager_code"
	InsightTypeLabel                   InsightType = "label"
	InsightTypeCategory                InsightType = "category"
	InsightTypeImageFlag               InsightType = "image_flag"
	InsightTypeProductWeight           InsightType = "product_weight"
	InsightTypeExpirationDate          InsightType = "expiration_date"
	InsightTypeBrand                   InsightType = "brand"
	InsightTypeStore                   InsightType = "store"
	InsightTypePackaging               InsightType = "packaging"
	InsightTypeTrace                   InsightType = "trace"
	InsightTypeImageOrientation        InsightType = "image_orientation"
	InsightTypeNutritionImage          InsightType = "nutrition_image"
	InsightTypeNutritionTableStructure InsightType = "nutrition_table_structure"
)

// AllInsightTypes lists every type the server knows how to store.
var AllInsightTypes = []InsightType{
	InsightTypeIngredientSpellcheck,
	InsightTypePackagerCode,
	InsightTypeLabel,
	InsightTypeCategory,
	InsightTypeImageFlag,
	InsightTypeProductWeight,
	InsightTypeExpirationDate,
	InsightTypeBrand,
	InsightTypeStore,
	InsightTypePackaging,
	InsightTypeTrace,
	InsightTypeImageOrientation,
	InsightTypeNutritionImage,
	InsightTypeNutritionTableStructure,
}

func (t InsightType) Valid() bool {
	for _, known := range AllInsightTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Annotation verdicts, as submitted by annotators.
const (
	AnnotationRefuse = -1
	AnnotationSkip   = 0
	AnnotationAccept = 1
)

// AnnotationStatus is the machine-readable outcome of an annotate call.
type AnnotationStatus string

const (
	AnnotationStatusSaved            AnnotationStatus = "saved"
	AnnotationStatusUpdated          AnnotationStatus = "updated"
	AnnotationStatusMissingProduct   AnnotationStatus = "error_missing_product"
	AnnotationStatusUpdatedProduct   AnnotationStatus = "error_updated_product"
	AnnotationStatusAlreadyAnnotated AnnotationStatus = "error_already_annotated"
	AnnotationStatusUnknownInsight   AnnotationStatus = "error_unknown_insight"
	AnnotationStatusLatentInsight    AnnotationStatus = "error_latent_insight"
	AnnotationStatusMissingData      AnnotationStatus = "error_missing_data"
	AnnotationStatusInvalidImage     AnnotationStatus = "error_invalid_image"
)

// AnnotationResult is returned for every annotate call, successful or not.
type AnnotationResult struct {
	Status      AnnotationStatus `json:"status"`
	Description string           `json:"description,omitempty"`
}

var (
	SavedAnnotationResult   = AnnotationResult{Status: AnnotationStatusSaved, Description: "the annotation was saved"}
	UpdatedAnnotationResult = AnnotationResult{Status: AnnotationStatusUpdated, Description: "the annotation was saved and sent to the product service"}
	MissingProductResult    = AnnotationResult{Status: AnnotationStatusMissingProduct, Description: "the product could not be found"}
	AlreadyAnnotatedResult  = AnnotationResult{Status: AnnotationStatusAlreadyAnnotated, Description: "the insight has already been annotated"}
	UnknownInsightResult    = AnnotationResult{Status: AnnotationStatusUnknownInsight, Description: "unknown insight ID"}
	LatentInsightResult     = AnnotationResult{Status: AnnotationStatusLatentInsight, Description: "cannot annotate a latent insight"}
	DataRequiredResult      = AnnotationResult{Status: AnnotationStatusMissingData, Description: "annotation data is required as JSON in the `data` field"}
)

// RawInsight is an insight candidate produced by an extractor or a model,
// before it is imported into the database.
type RawInsight struct {
	Type                InsightType    `json:"type"`
	Value               string         `json:"value,omitempty"`
	ValueTag            string         `json:"value_tag,omitempty"`
	Data                map[string]any `json:"data,omitempty"`
	AutomaticProcessing bool           `json:"automatic_processing,omitempty"`
	Predictor           string         `json:"predictor,omitempty"`
}

// ProductInsights groups raw insights of a single type extracted from a
// single product source (most often one image).
type ProductInsights struct {
	Barcode     string       `json:"barcode"`
	Type        InsightType  `json:"type"`
	SourceImage string       `json:"source_image,omitempty"`
	Insights    []RawInsight `json:"insights"`
}

// AnnotateRequest is the body of POST /insights/annotate.
type AnnotateRequest struct {
	InsightID  uuid.UUID      `json:"insight_id" binding:"required"`
	Annotation int            `json:"annotation" binding:"min=-1,max=1"`
	Update     *bool          `json:"update,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// RandomInsightQuery filters the annotation queue.
type RandomInsightQuery struct {
	Type     InsightType `form:"type"`
	Country  string      `form:"country"`
	ValueTag string      `form:"value_tag"`
	Brand    string      `form:"brands"`
	Count    int         `form:"count"`
}

// PredictOCRRequest is the body of POST /predict/ocr. Exactly one of OCR and
// OCRURL must be set.
type PredictOCRRequest struct {
	Barcode     string         `json:"barcode"`
	SourceImage string         `json:"source_image"`
	OCR         map[string]any `json:"ocr,omitempty"`
	OCRURL      string         `json:"ocr_url,omitempty"`
	Types       []InsightType  `json:"types,omitempty"`
}

// ProductEvent is the payload of the product-updated webhook and of the
// message published on the queue.
type ProductEvent struct {
	Barcode      string    `json:"barcode"`
	Action       string    `json:"action"`
	ServerDomain string    `json:"server_domain"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LogoAnnotateRequest annotates one detected logo with a human verdict.
type LogoAnnotateRequest struct {
	LogoID int64  `json:"logo_id" binding:"required"`
	Value  string `json:"value"`
	Type   string `json:"type" binding:"required"`
}
