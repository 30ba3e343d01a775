package start

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openfoodhub/insight-server/api/workflow"
	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/config"
)

var cronWorkerCmd = &cobra.Command{
	Use:   "cron-worker",
	Short: "Start the scheduled job worker and register its schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		if err := workflow.StartCronWorker(cfg); err != nil {
			return err
		}
		defer workflow.StopWorker()

		if err := workflow.RegisterCronJobs(cfg); err != nil {
			return err
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		return nil
	},
}
