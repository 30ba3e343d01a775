package handler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openfoodhub/insight-server/api/httpbase"
	"github.com/openfoodhub/insight-server/api/middleware"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
	"github.com/openfoodhub/insight-server/component"
)

type InsightHandler struct {
	ic component.InsightComponent
}

func NewInsightHandler(cfg *config.Config) (*InsightHandler, error) {
	products, err := component.NewProductComponent(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating product component: %w", err)
	}
	annotator := component.NewAnnotatorComponent(cfg, products)
	ic, err := component.NewInsightComponent(cfg, products, annotator)
	if err != nil {
		return nil, fmt.Errorf("error creating insight component: %w", err)
	}
	return &InsightHandler{ic: ic}, nil
}

// Random serves the annotation queue, filtered by query string.
func (h *InsightHandler) Random(ctx *gin.Context) {
	var query types.RandomInsightQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		httpbase.BadRequest(ctx, err.Error())
		return
	}
	if query.Type != "" && !query.Type.Valid() {
		httpbase.BadRequest(ctx, fmt.Sprintf("unknown insight type %q", query.Type))
		return
	}

	insights, err := h.ic.Random(ctx.Request.Context(), query)
	if err != nil {
		slog.Error("Failed to fetch random insights", slog.Any("error", err))
		httpbase.ServerError(ctx, err)
		return
	}
	httpbase.OK(ctx, insights)
}

// ByBarcode lists every insight attached to one product.
func (h *InsightHandler) ByBarcode(ctx *gin.Context) {
	barcode := ctx.Param("barcode")
	if barcode == "" {
		httpbase.BadRequest(ctx, "barcode is required")
		return
	}

	insights, err := h.ic.ByBarcode(ctx.Request.Context(), barcode)
	if err != nil {
		slog.Error("Failed to fetch insights by barcode",
			slog.String("barcode", barcode), slog.Any("error", err))
		httpbase.ServerError(ctx, err)
		return
	}
	httpbase.OK(ctx, insights)
}

// Detail serves one insight by ID.
func (h *InsightHandler) Detail(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		httpbase.BadRequest(ctx, "malformed insight ID")
		return
	}

	insight, err := h.ic.Get(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, component.ErrInsightNotFound) {
			httpbase.NotFoundError(ctx, err)
			return
		}
		slog.Error("Failed to fetch insight", slog.String("id", id.String()), slog.Any("error", err))
		httpbase.ServerError(ctx, err)
		return
	}
	httpbase.OK(ctx, insight)
}

// Annotate records a human verdict on one insight.
func (h *InsightHandler) Annotate(ctx *gin.Context) {
	var req types.AnnotateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		err = fmt.Errorf("cant parse as AnnotateRequest,%w", err)
		httpbase.BadRequest(ctx, err.Error())
		return
	}

	result, err := h.ic.Annotate(ctx.Request.Context(), req, middleware.GetProductAuth(ctx))
	if err != nil {
		slog.Error("Failed to annotate insight",
			slog.String("id", req.InsightID.String()), slog.Any("error", err))
		httpbase.ServerError(ctx, err)
		return
	}
	httpbase.OK(ctx, result)
}

// Counts reports the number of stored insights per type.
func (h *InsightHandler) Counts(ctx *gin.Context) {
	counts, err := h.ic.Counts(ctx.Request.Context())
	if err != nil {
		slog.Error("Failed to count insights", slog.Any("error", err))
		httpbase.ServerError(ctx, err)
		return
	}
	httpbase.OK(ctx, counts)
}
