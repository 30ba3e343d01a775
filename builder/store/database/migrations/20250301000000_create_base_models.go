package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/openfoodhub/insight-server/builder/store/database"
)

var baseModelTables = []any{
	database.ProductInsight{},
	database.ImageModel{},
	database.ImagePrediction{},
	database.LogoAnnotation{},
	database.LogoConfidenceThreshold{},
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return createTables(ctx, db, baseModelTables...)
	}, func(ctx context.Context, db *bun.DB) error {
		return dropTables(ctx, db, baseModelTables...)
	})
}
