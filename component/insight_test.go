package component

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openfoodhub/insight-server/builder/productsvc"
	"github.com/openfoodhub/insight-server/common/types"
)

func newTestInsightComponent(store *fakeInsightStore, client *fakeProductClient, cache *fakeCache) *insightComponentImpl {
	products := &fakeProducts{products: client.products}
	return &insightComponentImpl{
		insightStore: store,
		annotator:    newTestAnnotator(store, client),
		products:     products,
		cache:        cache,
		serverDomain: "api.openfoodfacts.org",
		processDelay: 10 * time.Minute,
	}
}

func TestAnnotateUnknownInsightID(t *testing.T) {
	c := newTestInsightComponent(newFakeInsightStore(), &fakeProductClient{}, newFakeCache())

	result, err := c.Annotate(context.Background(), types.AnnotateRequest{
		InsightID:  uuid.New(),
		Annotation: types.AnnotationAccept,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, types.UnknownInsightResult, result)
}

func TestAnnotateTwice(t *testing.T) {
	insight := labelInsight("123", "en:organic")
	store := newFakeInsightStore(insight)
	client := &fakeProductClient{products: map[string]*productsvc.Product{"123": {Code: "123"}}}
	c := newTestInsightComponent(store, client, newFakeCache())

	req := types.AnnotateRequest{InsightID: insight.ID, Annotation: types.AnnotationAccept}
	result, err := c.Annotate(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, types.UpdatedAnnotationResult, result)

	result, err = c.Annotate(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, types.AlreadyAnnotatedResult, result)
}

func TestAnnotateClearsValidationMarker(t *testing.T) {
	insight := labelInsight("123", "en:organic")
	store := newFakeInsightStore(insight)
	cache := newFakeCache()
	require.NoError(t, cache.SAdd(context.Background(), needValidationSetKey, insight.ID.String()))

	client := &fakeProductClient{products: map[string]*productsvc.Product{"123": {Code: "123"}}}
	c := newTestInsightComponent(store, client, cache)

	_, err := c.Annotate(context.Background(), types.AnnotateRequest{
		InsightID:  insight.ID,
		Annotation: types.AnnotationSkip,
	}, nil)
	require.NoError(t, err)

	member, err := cache.SIsMember(context.Background(), needValidationSetKey, insight.ID.String())
	require.NoError(t, err)
	require.False(t, member)
}

func TestPredictOCRFromPayload(t *testing.T) {
	c := newTestInsightComponent(newFakeInsightStore(), &fakeProductClient{}, newFakeCache())

	insights, err := c.PredictOCR(context.Background(), types.PredictOCRRequest{
		OCR: map[string]any{
			"fullTextAnnotation": map[string]any{"text": "Poids net: 500 g"},
		},
	})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, types.InsightTypeProductWeight, insights[0].Type)
}

func TestPredictOCRFiltersTypes(t *testing.T) {
	c := newTestInsightComponent(newFakeInsightStore(), &fakeProductClient{}, newFakeCache())

	insights, err := c.PredictOCR(context.Background(), types.PredictOCRRequest{
		OCR: map[string]any{
			"fullTextAnnotation": map[string]any{"text": "Poids net: 500 g. EMB 56123"},
		},
		Types: []types.InsightType{types.InsightTypePackagerCode},
	})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, types.InsightTypePackagerCode, insights[0].Type)
}

func TestPredictOCRRequiresPayload(t *testing.T) {
	c := newTestInsightComponent(newFakeInsightStore(), &fakeProductClient{}, newFakeCache())
	_, err := c.PredictOCR(context.Background(), types.PredictOCRRequest{})
	require.Error(t, err)
}

func TestPredictOCRUnknownType(t *testing.T) {
	c := newTestInsightComponent(newFakeInsightStore(), &fakeProductClient{}, newFakeCache())
	_, err := c.PredictOCR(context.Background(), types.PredictOCRRequest{
		OCR:   map[string]any{},
		Types: []types.InsightType{types.InsightTypeCategory},
	})
	require.Error(t, err)
}

func TestProcessInsights(t *testing.T) {
	due := time.Now().UTC().Add(-time.Minute)
	insight := labelInsight("123", "en:organic")
	insight.AutomaticProcessing = true
	insight.ProcessAfter = &due

	notDue := time.Now().UTC().Add(time.Hour)
	waiting := labelInsight("456", "en:fair-trade")
	waiting.AutomaticProcessing = true
	waiting.ProcessAfter = &notDue

	store := newFakeInsightStore(insight, waiting)
	client := &fakeProductClient{products: map[string]*productsvc.Product{
		"123": {Code: "123"},
		"456": {Code: "456"},
	}}
	c := newTestInsightComponent(store, client, newFakeCache())

	processed, err := c.ProcessInsights(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, []string{"add-label:123:en:organic"}, client.calls)
}

func TestMarkInsights(t *testing.T) {
	automatic := labelInsight("123", "en:organic")
	automatic.AutomaticProcessing = true
	manual := labelInsight("456", "en:fair-trade")

	store := newFakeInsightStore(automatic, manual)
	c := newTestInsightComponent(store, &fakeProductClient{}, newFakeCache())

	marked, err := c.MarkInsights(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, marked)

	saved, err := store.Get(context.Background(), automatic.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.ProcessAfter)
	require.True(t, saved.ProcessAfter.After(time.Now().UTC().Add(5*time.Minute)))

	// already marked insights are not rescheduled
	marked, err = c.MarkInsights(context.Background())
	require.NoError(t, err)
	require.Zero(t, marked)
}

func TestRefreshInsightsDeletesMissingProducts(t *testing.T) {
	old := time.Now().UTC().Add(-48 * time.Hour)
	gone := labelInsight("999", "en:organic")
	gone.Timestamp = old
	gone.ServerDomain = "api.openfoodfacts.org"

	kept := labelInsight("123", "en:organic")
	kept.Timestamp = old
	kept.ServerDomain = "api.openfoodfacts.org"
	kept.UniqueScansN = 1

	store := newFakeInsightStore(gone, kept)
	client := &fakeProductClient{products: map[string]*productsvc.Product{
		"123": {Code: "123", BrandsTags: []string{"acme"}, UniqueScansN: 5},
	}}
	c := newTestInsightComponent(store, client, newFakeCache())

	deleted, updated, err := c.RefreshInsights(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	require.Equal(t, 1, updated)

	_, err = store.Get(context.Background(), gone.ID)
	require.Error(t, err)

	refreshed, err := store.Get(context.Background(), kept.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"acme"}, refreshed.Brands)
	require.Equal(t, 5, refreshed.UniqueScansN)
}

func TestApplyType(t *testing.T) {
	insight := labelInsight("123", "en:organic")
	insight.SourceImage = "/123/1.json"

	store := newFakeInsightStore(insight)
	client := &fakeProductClient{products: map[string]*productsvc.Product{
		"123": {Code: "123", Images: map[string]productsvc.ProductImage{
			"1": {UploadedT: uploadedAt(time.Now().UTC())},
		}},
	}}
	c := newTestInsightComponent(store, client, newFakeCache())

	applied, err := c.ApplyType(context.Background(), types.InsightTypeLabel, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, applied)
	require.Equal(t, []string{"add-label:123:en:organic"}, client.calls)
}

func TestApplyTypeDeletesInvalidInsights(t *testing.T) {
	insight := labelInsight("999", "en:organic")
	insight.SourceImage = "/999/1.json"

	store := newFakeInsightStore(insight)
	client := &fakeProductClient{products: map[string]*productsvc.Product{}}
	c := newTestInsightComponent(store, client, newFakeCache())

	applied, err := c.ApplyType(context.Background(), types.InsightTypeLabel, time.Hour)
	require.NoError(t, err)
	require.Zero(t, applied)

	_, err = store.Get(context.Background(), insight.ID)
	require.Error(t, err)
}

func TestRandomClampsCount(t *testing.T) {
	store := newFakeInsightStore(labelInsight("123", "en:organic"))
	c := newTestInsightComponent(store, &fakeProductClient{}, newFakeCache())

	insights, err := c.Random(context.Background(), types.RandomInsightQuery{Count: -1})
	require.NoError(t, err)
	require.Len(t, insights, 1)
}
