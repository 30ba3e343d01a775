package component

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openfoodhub/insight-server/builder/productsvc"
)

func uploadedAt(t time.Time) any {
	return float64(t.Unix())
}

func TestImageID(t *testing.T) {
	require.Equal(t, "1", ImageID("/325/622/541/0015/1.json"))
	require.Equal(t, "12", ImageID("/325/622/541/0015/12.jpg"))
	require.Equal(t, "", ImageID("/325/622/541/0015/front_fr.jpg"))
	require.Equal(t, "", ImageID(""))
}

func TestIsReservedBarcode(t *testing.T) {
	require.True(t, IsReservedBarcode("2000000000001"))
	require.True(t, IsReservedBarcode("0002000000001"))
	require.False(t, IsReservedBarcode("3560070774670"))
	require.False(t, IsReservedBarcode(""))
}

func TestIsSelectedImage(t *testing.T) {
	images := map[string]productsvc.ProductImage{
		"1":        {},
		"2":        {},
		"front_fr": {ImgID: "2"},
	}
	require.True(t, isSelectedImage(images, "2"))
	require.False(t, isSelectedImage(images, "1"))
}

func TestIsRecentImage(t *testing.T) {
	now := time.Now().UTC()
	images := map[string]productsvc.ProductImage{
		"1": {UploadedT: uploadedAt(now.Add(-48 * time.Hour))},
		"2": {UploadedT: uploadedAt(now)},
	}

	// a newer image exists well past the window
	recent, err := isRecentImage(images, "1", time.Hour)
	require.NoError(t, err)
	require.False(t, recent)

	// the newest image is always recent
	recent, err = isRecentImage(images, "2", time.Hour)
	require.NoError(t, err)
	require.True(t, recent)

	// within the window
	recent, err = isRecentImage(images, "1", 72*time.Hour)
	require.NoError(t, err)
	require.True(t, recent)
}

func TestIsRecentImageSingleUpload(t *testing.T) {
	images := map[string]productsvc.ProductImage{
		"1":        {UploadedT: uploadedAt(time.Now())},
		"front_fr": {ImgID: "1"},
	}
	recent, err := isRecentImage(images, "1", time.Hour)
	require.NoError(t, err)
	require.True(t, recent)
}

func TestIsAutomaticallyProcessable(t *testing.T) {
	now := time.Now().UTC()
	products := &fakeProducts{products: map[string]*productsvc.Product{
		"123": {
			Code: "123",
			Images: map[string]productsvc.ProductImage{
				"1": {UploadedT: uploadedAt(now)},
			},
		},
	}}

	processable, err := isAutomaticallyProcessable(context.Background(), products, "123", "/123/1.json", time.Hour)
	require.NoError(t, err)
	require.True(t, processable)

	// selected image path is not a raw upload
	processable, err = isAutomaticallyProcessable(context.Background(), products, "123", "/123/front_fr.jpg", time.Hour)
	require.NoError(t, err)
	require.False(t, processable)

	// no source image
	processable, err = isAutomaticallyProcessable(context.Background(), products, "123", "", time.Hour)
	require.NoError(t, err)
	require.False(t, processable)
}

func TestIsAutomaticallyProcessableMissingProduct(t *testing.T) {
	products := &fakeProducts{products: map[string]*productsvc.Product{}}
	_, err := isAutomaticallyProcessable(context.Background(), products, "999", "/999/1.json", time.Hour)
	require.ErrorIs(t, err, ErrInvalidInsight)
}

func TestIsAutomaticallyProcessableMissingImage(t *testing.T) {
	products := &fakeProducts{products: map[string]*productsvc.Product{
		"123": {
			Code: "123",
			Images: map[string]productsvc.ProductImage{
				"2": {UploadedT: uploadedAt(time.Now())},
			},
		},
	}}
	_, err := isAutomaticallyProcessable(context.Background(), products, "123", "/123/1.json", time.Hour)
	require.ErrorIs(t, err, ErrInvalidInsight)
}
