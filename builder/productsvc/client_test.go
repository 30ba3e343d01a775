package productsvc

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfoodhub/insight-server/common/config"
)

func TestMain(m *testing.M) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	os.Exit(m.Run())
}

func newTestClient() Client {
	cfg := &config.Config{}
	cfg.ProductService.BaseURL = "http://products.test"
	cfg.ProductService.Username = "insight-bot"
	cfg.ProductService.Password = "bot-secret"
	cfg.ProductService.TimeoutSEC = 5
	return NewClient(cfg)
}

func TestClient_GetProduct(t *testing.T) {
	httpmock.Reset()
	httpmock.RegisterResponder("GET", "http://products.test/api/v0/product/3017620422003.json",
		httpmock.NewStringResponder(200, `{
			"status": 1,
			"product": {
				"code": "3017620422003",
				"product_name": "Nutella",
				"brands_tags": ["ferrero"],
				"categories_tags": ["en:spreads"],
				"ingredients_text_fr": "Sucre, huile de palme",
				"ingredients_text_en": "Sugar, palm oil",
				"unique_scans_n": 12,
				"images": {
					"1": {"imgid": "1", "uploaded_t": 1620000000},
					"front_fr": {"imgid": "1", "uploaded_t": "1620000100"}
				}
			}
		}`))

	client := newTestClient()
	product, err := client.GetProduct(context.Background(), "3017620422003", nil)
	require.NoError(t, err)
	require.NotNil(t, product)

	assert.Equal(t, "Nutella", product.ProductName)
	assert.Equal(t, []string{"ferrero"}, product.BrandsTags)
	assert.Equal(t, []string{"en:spreads"}, product.CategoriesTags)
	assert.Equal(t, 12, product.UniqueScansN)
	assert.Equal(t, map[string]string{
		"fr": "Sucre, huile de palme",
		"en": "Sugar, palm oil",
	}, product.IngredientsText)

	raw, ok := product.Images["1"]
	require.True(t, ok)
	uploadedAt, ok := raw.UploadedAt()
	require.True(t, ok)
	assert.Equal(t, time.Unix(1620000000, 0).UTC(), uploadedAt)

	selected, ok := product.Images["front_fr"]
	require.True(t, ok)
	uploadedAt, ok = selected.UploadedAt()
	require.True(t, ok)
	assert.Equal(t, time.Unix(1620000100, 0).UTC(), uploadedAt)
}

func TestClient_GetProduct_NotFound(t *testing.T) {
	httpmock.Reset()
	httpmock.RegisterResponder("GET", "http://products.test/api/v0/product/0000000000000.json",
		httpmock.NewStringResponder(200, `{"status": 0, "status_verbose": "product not found"}`))

	client := newTestClient()
	product, err := client.GetProduct(context.Background(), "0000000000000", nil)
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestClient_GetProduct_Fields(t *testing.T) {
	httpmock.Reset()
	httpmock.RegisterResponder("GET", "http://products.test/api/v0/product/123.json",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "product_name,images", req.URL.Query().Get("fields"))
			return httpmock.NewStringResponse(200, `{"status": 1, "product": {"product_name": "Tea"}}`), nil
		})

	client := newTestClient()
	product, err := client.GetProduct(context.Background(), "123", []string{"product_name", "images"})
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "Tea", product.ProductName)
}

func TestClient_AddLabelTag(t *testing.T) {
	httpmock.Reset()
	var form url.Values
	httpmock.RegisterResponder("POST", "http://products.test/cgi/product_jqm2.pl",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			form = req.PostForm
			return httpmock.NewStringResponse(200, `{"status": 1}`), nil
		})

	client := newTestClient()
	err := client.AddLabelTag(context.Background(), "123", "en:organic", UpdateOptions{
		InsightID:    "94c2bcf2-4d2d-4b87-9bf5-9dcbe2cf22b2",
		ServerDomain: "api.openfoodfacts.org",
		Auth:         &Auth{Username: "alice", Password: "hunter2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "en:organic", form.Get("add_labels"))
	assert.Equal(t, "123", form.Get("code"))
	assert.Equal(t, "[insight-server] insight 94c2bcf2-4d2d-4b87-9bf5-9dcbe2cf22b2", form.Get("comment"))
	assert.Equal(t, "api.openfoodfacts.org", form.Get("server_domain"))
	assert.Equal(t, "alice", form.Get("user_id"))
	assert.Equal(t, "hunter2", form.Get("password"))
}

func TestClient_UpdateProduct_ServiceAccount(t *testing.T) {
	httpmock.Reset()
	var form url.Values
	httpmock.RegisterResponder("POST", "http://products.test/cgi/product_jqm2.pl",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			form = req.PostForm
			return httpmock.NewStringResponse(200, `{"status": 1}`), nil
		})

	client := newTestClient()
	err := client.UpdateQuantity(context.Background(), "123", "500 g", UpdateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "500 g", form.Get("quantity"))
	assert.Equal(t, "[insight-server]", form.Get("comment"))
	assert.Empty(t, form.Get("server_domain"))
	assert.Equal(t, "insight-bot", form.Get("user_id"))
	assert.Equal(t, "bot-secret", form.Get("password"))
}

func TestClient_SaveIngredients(t *testing.T) {
	httpmock.Reset()
	var form url.Values
	httpmock.RegisterResponder("POST", "http://products.test/cgi/product_jqm2.pl",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			form = req.PostForm
			return httpmock.NewStringResponse(200, `{"status": 1}`), nil
		})

	client := newTestClient()
	err := client.SaveIngredients(context.Background(), "123", "Sucre, sel", "fr", UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Sucre, sel", form.Get("ingredients_text_fr"))
}

func TestClient_SelectRotateImage(t *testing.T) {
	httpmock.Reset()
	var form url.Values
	httpmock.RegisterResponder("POST", "http://products.test/cgi/product_image_crop.pl",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			form = req.PostForm
			return httpmock.NewStringResponse(200, `{"status": 1}`), nil
		})

	client := newTestClient()
	err := client.SelectRotateImage(context.Background(), "123", "2", "front_fr", 90, UpdateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "123", form.Get("code"))
	assert.Equal(t, "2", form.Get("imgid"))
	assert.Equal(t, "front_fr", form.Get("id"))
	assert.Equal(t, "90", form.Get("angle"))
	assert.Equal(t, "insight-bot", form.Get("user_id"))
}

func TestClient_UpdateProduct_ClientError(t *testing.T) {
	httpmock.Reset()
	httpmock.RegisterResponder("POST", "http://products.test/cgi/product_jqm2.pl",
		httpmock.NewStringResponder(403, "forbidden"))

	client := newTestClient()
	err := client.AddBrand(context.Background(), "123", "ferrero", UpdateOptions{})
	require.Error(t, err)
	// 4xx is not retried
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProductImage_UploadedAt_Invalid(t *testing.T) {
	_, ok := ProductImage{UploadedT: "not-a-number"}.UploadedAt()
	assert.False(t, ok)
	_, ok = ProductImage{}.UploadedAt()
	assert.False(t, ok)
}
