package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_product_insights_barcode ON product_insights (barcode);
CREATE INDEX IF NOT EXISTS idx_product_insights_pending ON product_insights (type, annotation) WHERE annotation IS NULL;
CREATE INDEX IF NOT EXISTS idx_product_insights_process_after ON product_insights (process_after) WHERE annotation IS NULL;
CREATE INDEX IF NOT EXISTS idx_image_models_source_image ON image_models (source_image);
CREATE INDEX IF NOT EXISTS idx_logo_annotations_annotation_type ON logo_annotations (annotation_type) WHERE annotation_type IS NOT NULL;
`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `
DROP INDEX IF EXISTS idx_product_insights_barcode;
DROP INDEX IF EXISTS idx_product_insights_pending;
DROP INDEX IF EXISTS idx_product_insights_process_after;
DROP INDEX IF EXISTS idx_image_models_source_image;
DROP INDEX IF EXISTS idx_logo_annotations_annotation_type;
`)
		return err
	})
}
