package start

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfoodhub/insight-server/api/httpbase"
	"github.com/openfoodhub/insight-server/api/router"
	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/component"
)

var serverCmd = &cobra.Command{
	Use:     "server",
	Short:   "Start the API server",
	Example: serverExample(),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		dbConfig := database.DBConfig{
			Dialect: database.DatabaseDialect(cfg.Database.Driver),
			DSN:     cfg.Database.DSN,
		}
		if err := database.InitDB(dbConfig); err != nil {
			return fmt.Errorf("initializing DB connection: %w", err)
		}

		if err := startProductEventSubscriber(cfg); err != nil {
			return err
		}

		r, err := router.NewRouter(cfg)
		if err != nil {
			return err
		}
		server := httpbase.NewGracefulServer(
			httpbase.GraceServerOpt{
				Port: cfg.APIServer.Port,
			},
			r,
		)
		server.Run()

		return nil
	},
}

func startProductEventSubscriber(cfg *config.Config) error {
	products, err := component.NewProductComponent(cfg)
	if err != nil {
		return fmt.Errorf("error creating product component: %w", err)
	}
	importer, err := component.NewImporterComponent(cfg, products)
	if err != nil {
		return fmt.Errorf("error creating importer component: %w", err)
	}
	updates := component.NewProductUpdateComponent(cfg, products, importer)
	subscriber, err := component.NewProductEventSubscriber(cfg, updates)
	if err != nil {
		return fmt.Errorf("error creating product event subscriber: %w", err)
	}
	return subscriber.Run()
}

func serverExample() string {
	return `
# for development
insight-server start server
`
}
