package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/openfoodhub/insight-server/common/config"
)

// CategoryPrediction is one category suggested by the neural classifier.
type CategoryPrediction struct {
	ValueTag   string  `json:"value_tag"`
	Confidence float64 `json:"confidence"`
}

// Client calls the model-serving endpoint.
type Client interface {
	// PredictCategories classifies a product into taxonomy categories
	// from its name and ingredient list.
	PredictCategories(ctx context.Context, productName, ingredients, lang string) ([]CategoryPrediction, error)
}

type httpClient struct {
	endpoint string
	hc       *http.Client
}

func NewClient(cfg *config.Config) Client {
	return &httpClient{
		endpoint: strings.TrimSuffix(cfg.Inference.Endpoint, "/"),
		hc: &http.Client{
			Timeout: time.Duration(cfg.Inference.TimeoutSEC) * time.Second,
		},
	}
}

type categoryPredictRequest struct {
	ProductName string `json:"product_name"`
	Ingredients string `json:"ingredients,omitempty"`
	Lang        string `json:"lang,omitempty"`
}

type categoryPredictResponse struct {
	Predictions []CategoryPrediction `json:"predictions"`
}

func (c *httpClient) PredictCategories(ctx context.Context, productName, ingredients, lang string) ([]CategoryPrediction, error) {
	reqBody, err := json.Marshal(categoryPredictRequest{
		ProductName: productName,
		Ingredients: ingredients,
		Lang:        lang,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding category predict request: %w", err)
	}

	var predictions []CategoryPrediction
	err = retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/predict/category", bytes.NewReader(reqBody))
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("inference service returned status %d", resp.StatusCode)
		}
		var out categoryPredictResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decoding category predict response: %w", err)
		}
		predictions = out.Predictions
		return nil
	},
		retry.Attempts(2),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return predictions, nil
}
