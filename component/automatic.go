package component

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openfoodhub/insight-server/builder/productsvc"
)

// ErrInvalidInsight marks an insight whose product or source image no longer
// exists upstream. Callers delete the insight instead of processing it.
var ErrInvalidInsight = errors.New("insight references a missing product or image")

// isAutomaticallyProcessable decides whether an insight derived from
// sourceImage may be applied without a human verdict: the image must still
// exist on the product and be either recent or one of the selected images.
func isAutomaticallyProcessable(ctx context.Context, products ProductComponent, barcode, sourceImage string, maxImageAge time.Duration) (bool, error) {
	if sourceImage == "" {
		return false, nil
	}
	imageID := ImageID(sourceImage)
	if imageID == "" {
		return false, nil
	}

	product, err := products.GetProduct(ctx, barcode, []string{"images"})
	if err != nil {
		return false, fmt.Errorf("fetching product %s: %w", barcode, err)
	}
	if product == nil {
		return false, fmt.Errorf("product %s: %w", barcode, ErrInvalidInsight)
	}
	if len(product.Images) == 0 {
		return false, fmt.Errorf("product %s has no images: %w", barcode, ErrInvalidInsight)
	}
	if _, ok := product.Images[imageID]; !ok {
		return false, fmt.Errorf("product %s image %s: %w", barcode, imageID, ErrInvalidInsight)
	}

	recent, err := isRecentImage(product.Images, imageID, maxImageAge)
	if err != nil {
		return false, err
	}
	if recent {
		return true, nil
	}
	return isSelectedImage(product.Images, imageID), nil
}

// isSelectedImage reports whether the image backs one of the displayed
// selections (front, ingredients or nutrition photo).
func isSelectedImage(images map[string]productsvc.ProductImage, imageID string) bool {
	for key, image := range images {
		for _, prefix := range []string{"nutrition", "front", "ingredients"} {
			if strings.HasPrefix(key, prefix) && image.ImgID == imageID {
				return true
			}
		}
	}
	return false
}

// isRecentImage reports whether no other raw upload is more than maxAge
// newer than the insight's image.
func isRecentImage(images map[string]productsvc.ProductImage, imageID string, maxAge time.Duration) (bool, error) {
	var insightUploadedAt time.Time
	var insightImageFound bool
	var others []time.Time

	for key, image := range images {
		if !isDigits(key) {
			continue
		}
		uploadedAt, ok := image.UploadedAt()
		if !ok {
			continue
		}
		if key == imageID {
			insightUploadedAt = uploadedAt
			insightImageFound = true
		} else {
			others = append(others, uploadedAt)
		}
	}

	if len(others) == 0 {
		return true, nil
	}
	if !insightImageFound {
		return false, fmt.Errorf("image %s not found among raw uploads", imageID)
	}

	for _, uploadedAt := range others {
		if uploadedAt.Sub(insightUploadedAt) > maxAge {
			return false, nil
		}
	}
	return true, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
