package component

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/openfoodhub/insight-server/builder/inference"
	"github.com/openfoodhub/insight-server/builder/productsvc"
	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/types"
)

// fakeInsightStore keeps insights in memory and records whether a
// transactional annotate was rolled back.
type fakeInsightStore struct {
	insights   map[uuid.UUID]*database.ProductInsight
	rolledBack bool
}

func newFakeInsightStore(insights ...*database.ProductInsight) *fakeInsightStore {
	s := &fakeInsightStore{insights: map[uuid.UUID]*database.ProductInsight{}}
	for _, insight := range insights {
		if insight.ID == uuid.Nil {
			insight.ID = uuid.New()
		}
		s.insights[insight.ID] = insight
	}
	return s
}

func (s *fakeInsightStore) Create(_ context.Context, insight *database.ProductInsight) error {
	if insight.ID == uuid.Nil {
		insight.ID = uuid.New()
	}
	s.insights[insight.ID] = insight
	return nil
}

func (s *fakeInsightStore) CreateBatch(ctx context.Context, insights []*database.ProductInsight) error {
	for _, insight := range insights {
		if err := s.Create(ctx, insight); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeInsightStore) Get(_ context.Context, id uuid.UUID) (*database.ProductInsight, error) {
	insight, ok := s.insights[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *insight
	return &copied, nil
}

func (s *fakeInsightStore) Update(_ context.Context, insight *database.ProductInsight) error {
	s.insights[insight.ID] = insight
	return nil
}

func (s *fakeInsightStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.insights, id)
	return nil
}

func (s *fakeInsightStore) ByBarcode(_ context.Context, barcode string) ([]database.ProductInsight, error) {
	var out []database.ProductInsight
	for _, insight := range s.insights {
		if insight.Barcode == barcode {
			out = append(out, *insight)
		}
	}
	return out, nil
}

func (s *fakeInsightStore) Random(_ context.Context, filter database.PendingInsightFilter) ([]database.ProductInsight, error) {
	var out []database.ProductInsight
	for _, insight := range s.insights {
		if insight.Annotated() || insight.Latent {
			continue
		}
		if filter.Type != "" && insight.Type != filter.Type {
			continue
		}
		out = append(out, *insight)
		if len(out) == filter.Count {
			break
		}
	}
	return out, nil
}

func (s *fakeInsightStore) PendingDue(_ context.Context, now time.Time) ([]database.ProductInsight, error) {
	var out []database.ProductInsight
	for _, insight := range s.insights {
		if insight.Annotated() || insight.Latent || insight.ProcessAfter == nil {
			continue
		}
		if insight.ProcessAfter.After(now) {
			continue
		}
		out = append(out, *insight)
	}
	return out, nil
}

func (s *fakeInsightStore) AutomaticUnmarked(_ context.Context) ([]database.ProductInsight, error) {
	var out []database.ProductInsight
	for _, insight := range s.insights {
		if insight.AutomaticProcessing && !insight.Latent && !insight.Annotated() && insight.ProcessAfter == nil {
			out = append(out, *insight)
		}
	}
	return out, nil
}

func (s *fakeInsightStore) PendingByBarcode(_ context.Context, barcode string) ([]database.ProductInsight, error) {
	var out []database.ProductInsight
	for _, insight := range s.insights {
		if insight.Barcode == barcode && !insight.Annotated() {
			out = append(out, *insight)
		}
	}
	return out, nil
}

func (s *fakeInsightStore) PendingOlderThan(_ context.Context, threshold time.Time, serverDomain string) ([]database.ProductInsight, error) {
	var out []database.ProductInsight
	for _, insight := range s.insights {
		if insight.Annotated() || insight.Timestamp.After(threshold) {
			continue
		}
		if serverDomain != "" && insight.ServerDomain != serverDomain {
			continue
		}
		out = append(out, *insight)
	}
	return out, nil
}

func (s *fakeInsightStore) PendingByTypeRandomOrder(_ context.Context, insightType types.InsightType) ([]database.ProductInsight, error) {
	var out []database.ProductInsight
	for _, insight := range s.insights {
		if insight.Type == insightType && !insight.Annotated() && !insight.Latent {
			out = append(out, *insight)
		}
	}
	return out, nil
}

func (s *fakeInsightStore) ExistsSimilar(_ context.Context, insight *database.ProductInsight) (bool, error) {
	for _, existing := range s.insights {
		if existing.Annotated() || existing.Barcode != insight.Barcode || existing.Type != insight.Type {
			continue
		}
		if insight.ValueTag != "" && existing.ValueTag != insight.ValueTag {
			continue
		}
		if insight.Value != "" && existing.Value != insight.Value {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (s *fakeInsightStore) AnnotateInTx(ctx context.Context, insight *database.ProductInsight, fn func(ctx context.Context) error) error {
	saved := *insight
	s.insights[insight.ID] = &saved
	if fn != nil {
		if err := fn(ctx); err != nil {
			// roll the verdict back
			saved.Annotation = nil
			saved.CompletedAt = nil
			s.rolledBack = true
			return err
		}
	}
	return nil
}

func (s *fakeInsightStore) CountByType(_ context.Context) (map[types.InsightType]int, error) {
	counts := map[types.InsightType]int{}
	for _, insight := range s.insights {
		counts[insight.Type]++
	}
	return counts, nil
}

// fakeProducts serves products from a map; nil entries mean "not found".
type fakeProducts struct {
	products map[string]*productsvc.Product
}

func (f *fakeProducts) GetProduct(_ context.Context, barcode string, _ []string) (*productsvc.Product, error) {
	return f.products[barcode], nil
}

func (f *fakeProducts) GetProductFresh(ctx context.Context, barcode string, fields []string) (*productsvc.Product, error) {
	return f.GetProduct(ctx, barcode, fields)
}

// fakeProductClient records write-backs and optionally fails them.
type fakeProductClient struct {
	products map[string]*productsvc.Product
	calls    []string
	failWith error
}

func (f *fakeProductClient) record(call string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeProductClient) GetProduct(_ context.Context, barcode string, _ []string) (*productsvc.Product, error) {
	return f.products[barcode], nil
}

func (f *fakeProductClient) AddBrand(_ context.Context, barcode, brand string, _ productsvc.UpdateOptions) error {
	return f.record("add-brand:" + barcode + ":" + brand)
}

func (f *fakeProductClient) AddCategory(_ context.Context, barcode, categoryTag string, _ productsvc.UpdateOptions) error {
	return f.record("add-category:" + barcode + ":" + categoryTag)
}

func (f *fakeProductClient) AddLabelTag(_ context.Context, barcode, labelTag string, _ productsvc.UpdateOptions) error {
	return f.record("add-label:" + barcode + ":" + labelTag)
}

func (f *fakeProductClient) AddPackaging(_ context.Context, barcode, packaging string, _ productsvc.UpdateOptions) error {
	return f.record("add-packaging:" + barcode + ":" + packaging)
}

func (f *fakeProductClient) AddStore(_ context.Context, barcode, store string, _ productsvc.UpdateOptions) error {
	return f.record("add-store:" + barcode + ":" + store)
}

func (f *fakeProductClient) UpdateQuantity(_ context.Context, barcode, quantity string, _ productsvc.UpdateOptions) error {
	return f.record("update-quantity:" + barcode + ":" + quantity)
}

func (f *fakeProductClient) UpdateExpirationDate(_ context.Context, barcode, expirationDate string, _ productsvc.UpdateOptions) error {
	return f.record("update-expiration:" + barcode + ":" + expirationDate)
}

func (f *fakeProductClient) UpdateEmbCodes(_ context.Context, barcode string, _ []string, _ productsvc.UpdateOptions) error {
	return f.record("update-emb-codes:" + barcode)
}

func (f *fakeProductClient) SaveIngredients(_ context.Context, barcode, _, lang string, _ productsvc.UpdateOptions) error {
	return f.record("save-ingredients:" + barcode + ":" + lang)
}

func (f *fakeProductClient) SelectRotateImage(_ context.Context, barcode, imageID, imageKey string, _ int, _ productsvc.UpdateOptions) error {
	return f.record("select-image:" + barcode + ":" + imageID + ":" + imageKey)
}

// fakeCache implements the redis surface used by the components.
type fakeCache struct {
	values map[string]string
	sets   map[string]map[string]struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, sets: map[string]map[string]struct{}{}}
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", sql.ErrNoRows
	}
	return value, nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeCache) SAdd(_ context.Context, key string, members ...interface{}) error {
	set, ok := f.sets[key]
	if !ok {
		set = map[string]struct{}{}
		f.sets[key] = set
	}
	for _, member := range members {
		set[member.(string)] = struct{}{}
	}
	return nil
}

func (f *fakeCache) SRem(_ context.Context, key string, members ...interface{}) error {
	for _, member := range members {
		delete(f.sets[key], member.(string))
	}
	return nil
}

func (f *fakeCache) SIsMember(_ context.Context, key string, member interface{}) (bool, error) {
	_, ok := f.sets[key][member.(string)]
	return ok, nil
}

func (f *fakeCache) SCard(_ context.Context, key string) (int64, error) {
	return int64(len(f.sets[key])), nil
}

func (f *fakeCache) RunWhileLocked(ctx context.Context, _ string, _ time.Duration, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeLogoStore serves logos from memory.
type fakeLogoStore struct {
	logos      map[int64]*database.LogoAnnotation
	thresholds []database.LogoConfidenceThreshold
}

func (s *fakeLogoStore) Create(_ context.Context, logo *database.LogoAnnotation) error {
	s.logos[logo.ID] = logo
	return nil
}

func (s *fakeLogoStore) Get(_ context.Context, id int64) (*database.LogoAnnotation, error) {
	logo, ok := s.logos[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *logo
	return &copied, nil
}

func (s *fakeLogoStore) GetBatch(_ context.Context, ids []int64) ([]database.LogoAnnotation, error) {
	var out []database.LogoAnnotation
	for _, id := range ids {
		if logo, ok := s.logos[id]; ok {
			out = append(out, *logo)
		}
	}
	return out, nil
}

func (s *fakeLogoStore) Update(_ context.Context, logo *database.LogoAnnotation) error {
	s.logos[logo.ID] = logo
	return nil
}

func (s *fakeLogoStore) Annotated(_ context.Context) ([]database.LogoAnnotation, error) {
	var out []database.LogoAnnotation
	for _, logo := range s.logos {
		if logo.AnnotationType != "" {
			out = append(out, *logo)
		}
	}
	return out, nil
}

func (s *fakeLogoStore) ConfidenceThresholds(_ context.Context) ([]database.LogoConfidenceThreshold, error) {
	return s.thresholds, nil
}

// fakeImporter records imported groups.
type fakeImporter struct {
	groups []types.ProductInsights
}

func (f *fakeImporter) Import(_ context.Context, groups []types.ProductInsights, _ string, _ bool) (int, error) {
	f.groups = append(f.groups, groups...)
	count := 0
	for _, group := range groups {
		count += len(group.Insights)
	}
	return count, nil
}

// fakeInference returns canned category predictions.
type fakeInference struct {
	predictions []inference.CategoryPrediction
}

func (f *fakeInference) PredictCategories(_ context.Context, _, _, _ string) ([]inference.CategoryPrediction, error) {
	return f.predictions, nil
}
