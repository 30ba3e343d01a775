package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/openfoodhub/insight-server/api/workflow/activity"
	"github.com/openfoodhub/insight-server/common/config"
)

func ProcessInsightsWorkflow(ctx workflow.Context, config *config.Config) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("process insights workflow started")

	ctx = withCronActivityOptions(ctx, 30*time.Minute)
	err := workflow.ExecuteActivity(ctx, activity.ProcessInsights, config).Get(ctx, nil)
	if err != nil {
		logger.Error("failed to process insights", "error", err)
		return err
	}
	return nil
}

func MarkInsightsWorkflow(ctx workflow.Context, config *config.Config) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("mark insights workflow started")

	ctx = withCronActivityOptions(ctx, 10*time.Minute)
	err := workflow.ExecuteActivity(ctx, activity.MarkInsights, config).Get(ctx, nil)
	if err != nil {
		logger.Error("failed to mark insights", "error", err)
		return err
	}
	return nil
}

func RefreshInsightsWorkflow(ctx workflow.Context, config *config.Config) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("refresh insights workflow started")

	ctx = withCronActivityOptions(ctx, 4*time.Hour)
	err := workflow.ExecuteActivity(ctx, activity.RefreshInsights, config).Get(ctx, nil)
	if err != nil {
		logger.Error("failed to refresh insights", "error", err)
		return err
	}
	return nil
}

func DownloadDatasetWorkflow(ctx workflow.Context, config *config.Config) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("download dataset workflow started")

	ctx = withCronActivityOptions(ctx, 4*time.Hour)
	err := workflow.ExecuteActivity(ctx, activity.DownloadDataset, config).Get(ctx, nil)
	if err != nil {
		logger.Error("failed to download dataset", "error", err)
		return err
	}
	return nil
}

func withCronActivityOptions(ctx workflow.Context, timeout time.Duration) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
}
