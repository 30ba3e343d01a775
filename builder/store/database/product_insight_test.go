package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/tests"
	"github.com/openfoodhub/insight-server/common/types"
)

func pendingInsight(barcode string, insightType types.InsightType, valueTag string) *database.ProductInsight {
	return &database.ProductInsight{
		ID:           uuid.New(),
		Barcode:      barcode,
		Type:         insightType,
		ValueTag:     valueTag,
		ServerDomain: "api.openfoodfacts.org",
	}
}

func TestProductInsightStore_CRUD(t *testing.T) {
	db := tests.InitTestDB()
	defer db.Close()
	ctx := context.TODO()

	store := database.NewProductInsightStoreWithDB(db)

	insight := pendingInsight("3017620422003", types.InsightTypeLabel, "en:organic")
	insight.Data = map[string]any{"text": "bio"}
	err := store.Create(ctx, insight)
	require.Nil(t, err)

	found, err := store.Get(ctx, insight.ID)
	require.Nil(t, err)
	require.Equal(t, "3017620422003", found.Barcode)
	require.Equal(t, types.InsightTypeLabel, found.Type)
	require.Equal(t, "bio", found.Data["text"])
	require.False(t, found.Annotated())

	annotation := types.AnnotationAccept
	now := time.Now().UTC()
	found.Annotation = &annotation
	found.CompletedAt = &now
	found.Username = "alice"
	err = store.Update(ctx, found)
	require.Nil(t, err)

	found, err = store.Get(ctx, insight.ID)
	require.Nil(t, err)
	require.True(t, found.Annotated())
	require.Equal(t, "alice", found.Username)

	err = store.Delete(ctx, insight.ID)
	require.Nil(t, err)
	_, err = store.Get(ctx, insight.ID)
	require.NotNil(t, err)
}

func TestProductInsightStore_ByBarcode(t *testing.T) {
	db := tests.InitTestDB()
	defer db.Close()
	ctx := context.TODO()

	store := database.NewProductInsightStoreWithDB(db)

	err := store.CreateBatch(ctx, []*database.ProductInsight{
		pendingInsight("123", types.InsightTypeLabel, "en:organic"),
		pendingInsight("123", types.InsightTypeBrand, "acme"),
		pendingInsight("456", types.InsightTypeLabel, "en:organic"),
	})
	require.Nil(t, err)

	insights, err := store.ByBarcode(ctx, "123")
	require.Nil(t, err)
	require.Len(t, insights, 2)
}

func TestProductInsightStore_Random(t *testing.T) {
	db := tests.InitTestDB()
	defer db.Close()
	ctx := context.TODO()

	store := database.NewProductInsightStoreWithDB(db)

	labelFR := pendingInsight("123", types.InsightTypeLabel, "en:organic")
	labelFR.Countries = []string{"en:france"}
	labelFR.Brands = []string{"acme"}
	annotated := pendingInsight("123", types.InsightTypeLabel, "en:eu-organic")
	verdict := types.AnnotationRefuse
	annotated.Annotation = &verdict
	latent := pendingInsight("123", types.InsightTypeTrace, "en:milk")
	latent.Latent = true

	err := store.CreateBatch(ctx, []*database.ProductInsight{labelFR, annotated, latent})
	require.Nil(t, err)

	insights, err := store.Random(ctx, database.PendingInsightFilter{Count: 10})
	require.Nil(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, labelFR.ID, insights[0].ID)

	insights, err = store.Random(ctx, database.PendingInsightFilter{Country: "en:france", Count: 10})
	require.Nil(t, err)
	require.Len(t, insights, 1)

	insights, err = store.Random(ctx, database.PendingInsightFilter{Country: "en:spain", Count: 10})
	require.Nil(t, err)
	require.Empty(t, insights)

	insights, err = store.Random(ctx, database.PendingInsightFilter{Brand: "acme", ValueTag: "en:organic", Count: 10})
	require.Nil(t, err)
	require.Len(t, insights, 1)
}

func TestProductInsightStore_PendingDue(t *testing.T) {
	db := tests.InitTestDB()
	defer db.Close()
	ctx := context.TODO()

	store := database.NewProductInsightStoreWithDB(db)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := pendingInsight("123", types.InsightTypeLabel, "en:organic")
	due.AutomaticProcessing = true
	due.ProcessAfter = &past
	notYet := pendingInsight("123", types.InsightTypeBrand, "acme")
	notYet.AutomaticProcessing = true
	notYet.ProcessAfter = &future
	unmarked := pendingInsight("123", types.InsightTypeStore, "carrefour")
	unmarked.AutomaticProcessing = true

	err := store.CreateBatch(ctx, []*database.ProductInsight{due, notYet, unmarked})
	require.Nil(t, err)

	insights, err := store.PendingDue(ctx, now)
	require.Nil(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, due.ID, insights[0].ID)

	waiting, err := store.AutomaticUnmarked(ctx)
	require.Nil(t, err)
	require.Len(t, waiting, 1)
	require.Equal(t, unmarked.ID, waiting[0].ID)
}

func TestProductInsightStore_PendingOlderThan(t *testing.T) {
	db := tests.InitTestDB()
	defer db.Close()
	ctx := context.TODO()

	store := database.NewProductInsightStoreWithDB(db)

	old := pendingInsight("123", types.InsightTypeLabel, "en:organic")
	old.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
	fresh := pendingInsight("456", types.InsightTypeLabel, "en:organic")
	fresh.Timestamp = time.Now().UTC().Add(time.Hour)
	otherDomain := pendingInsight("789", types.InsightTypeLabel, "en:organic")
	otherDomain.Timestamp = old.Timestamp
	otherDomain.ServerDomain = "api.example.org"

	err := store.CreateBatch(ctx, []*database.ProductInsight{old, fresh, otherDomain})
	require.Nil(t, err)

	insights, err := store.PendingOlderThan(ctx, time.Now().UTC(), "api.openfoodfacts.org")
	require.Nil(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, old.ID, insights[0].ID)
}

func TestProductInsightStore_ExistsSimilar(t *testing.T) {
	db := tests.InitTestDB()
	defer db.Close()
	ctx := context.TODO()

	store := database.NewProductInsightStoreWithDB(db)

	err := store.Create(ctx, pendingInsight("123", types.InsightTypeLabel, "en:organic"))
	require.Nil(t, err)

	exists, err := store.ExistsSimilar(ctx, pendingInsight("123", types.InsightTypeLabel, "en:organic"))
	require.Nil(t, err)
	require.True(t, exists)

	exists, err = store.ExistsSimilar(ctx, pendingInsight("123", types.InsightTypeLabel, "en:eu-organic"))
	require.Nil(t, err)
	require.False(t, exists)

	exists, err = store.ExistsSimilar(ctx, pendingInsight("456", types.InsightTypeLabel, "en:organic"))
	require.Nil(t, err)
	require.False(t, exists)
}

func TestProductInsightStore_AnnotateInTx(t *testing.T) {
	db := tests.InitTestDB()
	defer db.Close()
	ctx := context.TODO()

	store := database.NewProductInsightStoreWithDB(db)

	insight := pendingInsight("123", types.InsightTypeLabel, "en:organic")
	err := store.Create(ctx, insight)
	require.Nil(t, err)

	verdict := types.AnnotationAccept
	now := time.Now().UTC()
	insight.Annotation = &verdict
	insight.CompletedAt = &now

	err = store.AnnotateInTx(ctx, insight, func(ctx context.Context) error {
		return errors.New("upstream down")
	})
	require.NotNil(t, err)

	found, err := store.Get(ctx, insight.ID)
	require.Nil(t, err)
	require.False(t, found.Annotated())

	err = store.AnnotateInTx(ctx, insight, func(ctx context.Context) error {
		return nil
	})
	require.Nil(t, err)

	found, err = store.Get(ctx, insight.ID)
	require.Nil(t, err)
	require.True(t, found.Annotated())
	require.Equal(t, types.AnnotationAccept, *found.Annotation)
}

func TestProductInsightStore_CountByType(t *testing.T) {
	db := tests.InitTestDB()
	defer db.Close()
	ctx := context.TODO()

	store := database.NewProductInsightStoreWithDB(db)

	err := store.CreateBatch(ctx, []*database.ProductInsight{
		pendingInsight("123", types.InsightTypeLabel, "en:organic"),
		pendingInsight("456", types.InsightTypeLabel, "en:eu-organic"),
		pendingInsight("123", types.InsightTypeBrand, "acme"),
	})
	require.Nil(t, err)

	counts, err := store.CountByType(ctx)
	require.Nil(t, err)
	require.Equal(t, 2, counts[types.InsightTypeLabel])
	require.Equal(t, 1, counts[types.InsightTypeBrand])
}
