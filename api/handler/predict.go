package handler

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/openfoodhub/insight-server/api/httpbase"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
	"github.com/openfoodhub/insight-server/component"
)

type PredictHandler struct {
	ic component.InsightComponent
}

func NewPredictHandler(cfg *config.Config) (*PredictHandler, error) {
	products, err := component.NewProductComponent(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating product component: %w", err)
	}
	annotator := component.NewAnnotatorComponent(cfg, products)
	ic, err := component.NewInsightComponent(cfg, products, annotator)
	if err != nil {
		return nil, fmt.Errorf("error creating insight component: %w", err)
	}
	return &PredictHandler{ic: ic}, nil
}

// OCR runs the extractors over a submitted OCR payload without storing
// anything.
func (h *PredictHandler) OCR(ctx *gin.Context) {
	var req types.PredictOCRRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		err = fmt.Errorf("cant parse as PredictOCRRequest,%w", err)
		httpbase.BadRequest(ctx, err.Error())
		return
	}
	for _, insightType := range req.Types {
		if !insightType.Valid() {
			httpbase.BadRequest(ctx, fmt.Sprintf("unknown insight type %q", insightType))
			return
		}
	}

	insights, err := h.ic.PredictOCR(ctx.Request.Context(), req)
	if err != nil {
		slog.Error("Failed to predict from OCR", slog.Any("error", err))
		httpbase.BadRequest(ctx, err.Error())
		return
	}
	httpbase.OK(ctx, insights)
}
