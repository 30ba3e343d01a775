package models

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/component"
)

var Cmd = &cobra.Command{
	Use:   "download-models",
	Short: "fetch model weight artifacts into object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		mc, err := component.NewModelComponent(cfg)
		if err != nil {
			return fmt.Errorf("error creating model component: %w", err)
		}
		downloaded, err := mc.DownloadModels(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("downloaded %d model artifacts\n", downloaded)
		return nil
	},
}
