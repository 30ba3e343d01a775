package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openfoodhub/insight-server/api/httpbase"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
	"github.com/openfoodhub/insight-server/component"
)

type LogoHandler struct {
	lc           component.LogoComponent
	serverDomain string
}

func NewLogoHandler(cfg *config.Config) (*LogoHandler, error) {
	products, err := component.NewProductComponent(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating product component: %w", err)
	}
	importer, err := component.NewImporterComponent(cfg, products)
	if err != nil {
		return nil, fmt.Errorf("error creating importer component: %w", err)
	}
	return &LogoHandler{
		lc:           component.NewLogoComponent(products, importer),
		serverDomain: cfg.ProductService.ServerDomain,
	}, nil
}

// Get serves one detected logo with its annotation state.
func (h *LogoHandler) Get(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		httpbase.BadRequest(ctx, "malformed logo ID")
		return
	}

	logo, err := h.lc.Get(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, component.ErrLogoNotFound) {
			httpbase.NotFoundError(ctx, err)
			return
		}
		slog.Error("Failed to fetch logo", slog.Int64("id", id), slog.Any("error", err))
		httpbase.ServerError(ctx, err)
		return
	}
	httpbase.OK(ctx, logo)
}

// Annotate records human verdicts on a batch of logos and imports the
// derived insights.
func (h *LogoHandler) Annotate(ctx *gin.Context) {
	var reqs []types.LogoAnnotateRequest
	if err := ctx.ShouldBindJSON(&reqs); err != nil {
		err = fmt.Errorf("cant parse as LogoAnnotateRequest array,%w", err)
		httpbase.BadRequest(ctx, err.Error())
		return
	}
	if len(reqs) == 0 {
		httpbase.BadRequest(ctx, "at least one logo annotation is required")
		return
	}

	annotated, err := h.lc.Annotate(ctx.Request.Context(), reqs, httpbase.GetCurrentUser(ctx), h.serverDomain)
	if err != nil {
		if errors.Is(err, component.ErrLogoNotFound) {
			httpbase.NotFoundError(ctx, err)
			return
		}
		slog.Error("Failed to annotate logos", slog.Any("error", err))
		httpbase.ServerError(ctx, err)
		return
	}
	httpbase.OK(ctx, annotated)
}
