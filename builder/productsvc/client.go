package productsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/openfoodhub/insight-server/common/config"
)

// Product is the subset of product fields the server reads. Fields not
// requested stay at their zero value.
type Product struct {
	Code            string                  `json:"code"`
	ProductName     string                  `json:"product_name"`
	Quantity        string                  `json:"quantity"`
	ExpirationDate  string                  `json:"expiration_date"`
	EmbCodes        string                  `json:"emb_codes"`
	BrandsTags      []string                `json:"brands_tags"`
	CategoriesTags  []string                `json:"categories_tags"`
	LabelsTags      []string                `json:"labels_tags"`
	StoresTags      []string                `json:"stores_tags"`
	PackagingTags   []string                `json:"packaging_tags"`
	CountriesTags   []string                `json:"countries_tags"`
	IngredientsText map[string]string       `json:"-"`
	Images          map[string]ProductImage `json:"images"`
	UniqueScansN    int                     `json:"unique_scans_n"`
}

// ProductImage describes one image attached to a product. Numeric keys in the
// product images map are raw uploads; keys like "front_fr" are selections
// referencing a raw upload through ImgID.
type ProductImage struct {
	ImgID     string `json:"imgid"`
	UploadedT any    `json:"uploaded_t"`
	Sizes     any    `json:"sizes"`
}

// UploadedAt parses the upload timestamp, which the upstream API returns
// either as a number or a string.
func (i ProductImage) UploadedAt() (time.Time, bool) {
	switch v := i.UploadedT.(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case string:
		sec, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(sec, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// Auth carries the credentials of the human annotator on whose behalf an
// update is made. The zero value falls back to the service account.
type Auth struct {
	Username string
	Password string
}

type UpdateOptions struct {
	InsightID    string
	ServerDomain string
	Auth         *Auth
}

// Client talks to the upstream product service.
type Client interface {
	GetProduct(ctx context.Context, barcode string, fields []string) (*Product, error)
	AddBrand(ctx context.Context, barcode, brand string, opts UpdateOptions) error
	AddCategory(ctx context.Context, barcode, categoryTag string, opts UpdateOptions) error
	AddLabelTag(ctx context.Context, barcode, labelTag string, opts UpdateOptions) error
	AddPackaging(ctx context.Context, barcode, packaging string, opts UpdateOptions) error
	AddStore(ctx context.Context, barcode, store string, opts UpdateOptions) error
	UpdateQuantity(ctx context.Context, barcode, quantity string, opts UpdateOptions) error
	UpdateExpirationDate(ctx context.Context, barcode, expirationDate string, opts UpdateOptions) error
	UpdateEmbCodes(ctx context.Context, barcode string, embCodes []string, opts UpdateOptions) error
	SaveIngredients(ctx context.Context, barcode, ingredients, lang string, opts UpdateOptions) error
	SelectRotateImage(ctx context.Context, barcode, imageID, imageKey string, rotate int, opts UpdateOptions) error
}

type client struct {
	baseURL  string
	username string
	password string
	hc       *http.Client
}

func NewClient(cfg *config.Config) Client {
	return &client{
		baseURL:  strings.TrimSuffix(cfg.ProductService.BaseURL, "/"),
		username: cfg.ProductService.Username,
		password: cfg.ProductService.Password,
		hc: &http.Client{
			Timeout: time.Duration(cfg.ProductService.TimeoutSEC) * time.Second,
		},
	}
}

func readAll(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

type productResponse struct {
	Status  int             `json:"status"`
	Product json.RawMessage `json:"product"`
}

func (c *client) GetProduct(ctx context.Context, barcode string, fields []string) (*Product, error) {
	u := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(barcode))
	if len(fields) > 0 {
		u += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}

	var body []byte
	err := retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("product service returned status %d", resp.StatusCode)
		}
		body, err = readAll(resp)
		return err
	},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching product %s: %w", barcode, err)
	}

	var pr productResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decoding product %s: %w", barcode, err)
	}
	if pr.Status != 1 || len(pr.Product) == 0 {
		// product not found
		return nil, nil
	}
	var product Product
	if err := json.Unmarshal(pr.Product, &product); err != nil {
		return nil, fmt.Errorf("decoding product %s: %w", barcode, err)
	}
	product.IngredientsText = extractIngredientTexts(pr.Product)
	return &product, nil
}

// extractIngredientTexts collects ingredients_text_<lang> fields, which have
// dynamic names and cannot be bound statically.
func extractIngredientTexts(raw json.RawMessage) map[string]string {
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil
	}
	texts := map[string]string{}
	for key, value := range all {
		lang, ok := strings.CutPrefix(key, "ingredients_text_")
		if !ok {
			continue
		}
		if text, ok := value.(string); ok {
			texts[lang] = text
		}
	}
	if len(texts) == 0 {
		return nil
	}
	return texts
}

func (c *client) AddBrand(ctx context.Context, barcode, brand string, opts UpdateOptions) error {
	return c.updateProduct(ctx, barcode, url.Values{"add_brands": {brand}}, opts)
}

func (c *client) AddCategory(ctx context.Context, barcode, categoryTag string, opts UpdateOptions) error {
	return c.updateProduct(ctx, barcode, url.Values{"add_categories": {categoryTag}}, opts)
}

func (c *client) AddLabelTag(ctx context.Context, barcode, labelTag string, opts UpdateOptions) error {
	return c.updateProduct(ctx, barcode, url.Values{"add_labels": {labelTag}}, opts)
}

func (c *client) AddPackaging(ctx context.Context, barcode, packaging string, opts UpdateOptions) error {
	return c.updateProduct(ctx, barcode, url.Values{"add_packaging": {packaging}}, opts)
}

func (c *client) AddStore(ctx context.Context, barcode, store string, opts UpdateOptions) error {
	return c.updateProduct(ctx, barcode, url.Values{"add_stores": {store}}, opts)
}

func (c *client) UpdateQuantity(ctx context.Context, barcode, quantity string, opts UpdateOptions) error {
	return c.updateProduct(ctx, barcode, url.Values{"quantity": {quantity}}, opts)
}

func (c *client) UpdateExpirationDate(ctx context.Context, barcode, expirationDate string, opts UpdateOptions) error {
	return c.updateProduct(ctx, barcode, url.Values{"expiration_date": {expirationDate}}, opts)
}

func (c *client) UpdateEmbCodes(ctx context.Context, barcode string, embCodes []string, opts UpdateOptions) error {
	return c.updateProduct(ctx, barcode, url.Values{"emb_codes": {strings.Join(embCodes, ",")}}, opts)
}

func (c *client) SaveIngredients(ctx context.Context, barcode, ingredients, lang string, opts UpdateOptions) error {
	field := "ingredients_text"
	if lang != "" {
		field = "ingredients_text_" + lang
	}
	return c.updateProduct(ctx, barcode, url.Values{field: {ingredients}}, opts)
}

func (c *client) SelectRotateImage(ctx context.Context, barcode, imageID, imageKey string, rotate int, opts UpdateOptions) error {
	params := url.Values{
		"code":  {barcode},
		"imgid": {imageID},
		"id":    {imageKey},
	}
	if rotate != 0 {
		params.Set("angle", strconv.Itoa(rotate))
	}
	c.applyAuth(params, opts.Auth)
	return c.postForm(ctx, "/cgi/product_image_crop.pl", params)
}

func (c *client) updateProduct(ctx context.Context, barcode string, params url.Values, opts UpdateOptions) error {
	params.Set("code", barcode)
	comment := "[insight-server]"
	if opts.InsightID != "" {
		comment = fmt.Sprintf("[insight-server] insight %s", opts.InsightID)
	}
	params.Set("comment", comment)
	if opts.ServerDomain != "" {
		params.Set("server_domain", opts.ServerDomain)
	}
	c.applyAuth(params, opts.Auth)
	return c.postForm(ctx, "/cgi/product_jqm2.pl", params)
}

func (c *client) applyAuth(params url.Values, auth *Auth) {
	if auth != nil && auth.Username != "" {
		params.Set("user_id", auth.Username)
		params.Set("password", auth.Password)
		return
	}
	params.Set("user_id", c.username)
	params.Set("password", c.password)
}

func (c *client) postForm(ctx context.Context, path string, params url.Values) error {
	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(params.Encode()))
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("product service returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Unrecoverable(fmt.Errorf("product service returned status %d", resp.StatusCode))
		}
		return nil
	},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
