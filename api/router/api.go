package router

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openfoodhub/insight-server/api/handler"
	"github.com/openfoodhub/insight-server/api/middleware"
	"github.com/openfoodhub/insight-server/common/config"
)

func NewRouter(config *config.Config) (*gin.Engine, error) {
	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowCredentials: true,
		AllowHeaders:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowAllOrigins:  true,
	}))
	r.Use(middleware.Recovery())
	r.Use(middleware.Log())
	r.Use(middleware.Authenticator(config))

	needAPIKey := middleware.OnlyAPIKeyAuthenticator(config)

	healthHandler := handler.NewHealthHandler()
	r.HEAD("/healthz", healthHandler.Healthz)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	insightHandler, err := handler.NewInsightHandler(config)
	if err != nil {
		return nil, fmt.Errorf("error creating insight handler:%w", err)
	}
	predictHandler, err := handler.NewPredictHandler(config)
	if err != nil {
		return nil, fmt.Errorf("error creating predict handler:%w", err)
	}
	logoHandler, err := handler.NewLogoHandler(config)
	if err != nil {
		return nil, fmt.Errorf("error creating logo handler:%w", err)
	}
	webhookHandler, err := handler.NewWebhookHandler(config)
	if err != nil {
		return nil, fmt.Errorf("error creating webhook handler:%w", err)
	}

	apiGroup := r.Group("/api/v1")

	insightsGroup := apiGroup.Group("/insights")
	{
		insightsGroup.GET("/random", insightHandler.Random)
		insightsGroup.GET("/counts", insightHandler.Counts)
		insightsGroup.GET("/detail/:id", insightHandler.Detail)
		insightsGroup.GET("/:barcode", insightHandler.ByBarcode)
		insightsGroup.POST("/annotate", insightHandler.Annotate)
	}

	apiGroup.POST("/predict/ocr", predictHandler.OCR)

	logosGroup := apiGroup.Group("/logos")
	{
		logosGroup.GET("/:id", logoHandler.Get)
		logosGroup.POST("/annotate", logoHandler.Annotate)
	}

	apiGroup.POST("/webhook/product", needAPIKey, webhookHandler.ProductUpdated)

	return r, nil
}
