package insights

import (
	"github.com/spf13/cobra"

	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/common/config"
)

func init() {
	Cmd.AddCommand(importCmd)
	Cmd.AddCommand(applyCmd)
}

var Cmd = &cobra.Command{
	Use:   "insights",
	Short: "Batch operations on stored insights",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		return database.InitDB(database.DBConfig{
			Dialect: database.DatabaseDialect(cfg.Database.Driver),
			DSN:     cfg.Database.DSN,
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}
