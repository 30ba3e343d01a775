package insights

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
	"github.com/openfoodhub/insight-server/component"
)

var (
	applyType string
	maxDelta  time.Duration
)

func init() {
	applyCmd.Flags().StringVar(&applyType, "type", "", "insight type to apply")
	applyCmd.Flags().DurationVar(&maxDelta, "max-delta", 10*time.Hour, "maximum age gap between the source image and the newest product image")
	_ = applyCmd.MarkFlagRequired("type")
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "bulk-apply pending insights of one type",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		insightType := types.InsightType(applyType)
		if !insightType.Valid() {
			return fmt.Errorf("unknown insight type %q", insightType)
		}

		products, err := component.NewProductComponent(cfg)
		if err != nil {
			return fmt.Errorf("error creating product component: %w", err)
		}
		annotator := component.NewAnnotatorComponent(cfg, products)
		ic, err := component.NewInsightComponent(cfg, products, annotator)
		if err != nil {
			return fmt.Errorf("error creating insight component: %w", err)
		}

		applied, err := ic.ApplyType(cmd.Context(), insightType, maxDelta)
		if err != nil {
			return err
		}
		fmt.Printf("applied %d insights\n", applied)
		return nil
	},
}
