package workflow

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/openfoodhub/insight-server/api/workflow/activity"
	"github.com/openfoodhub/insight-server/common/config"
)

const (
	AlreadyScheduledMessage = "schedule with this ID is already registered"
	CronJobQueueName        = "workflow_cron_queue"
)

var (
	wfWorker worker.Worker
	wfClient client.Client
)

type cronSchedule struct {
	id         string
	expression string
	workflow   any
}

func RegisterCronJobs(config *config.Config) error {
	var err error
	if wfClient == nil {
		wfClient, err = client.Dial(client.Options{
			HostPort: config.WorkFlow.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("unable to create workflow client, error:%w", err)
		}
	}

	schedules := []cronSchedule{
		{"process-insights", config.CronJob.ProcessInsightsCronExpression, ProcessInsightsWorkflow},
		{"mark-insights", config.CronJob.MarkInsightsCronExpression, MarkInsightsWorkflow},
		{"refresh-insights", config.CronJob.RefreshInsightsCronExpression, RefreshInsightsWorkflow},
		{"download-dataset", config.CronJob.DownloadDatasetCronExpression, DownloadDatasetWorkflow},
	}
	for _, schedule := range schedules {
		_, err = wfClient.ScheduleClient().Create(context.Background(), client.ScheduleOptions{
			ID: schedule.id + "-schedule",
			Spec: client.ScheduleSpec{
				CronExpressions: []string{schedule.expression},
			},
			Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
			Action: &client.ScheduleWorkflowAction{
				ID:        schedule.id + "-workflow",
				TaskQueue: CronJobQueueName,
				Workflow:  schedule.workflow,
				Args:      []interface{}{config},
			},
		})
		if err != nil && err.Error() != AlreadyScheduledMessage {
			return fmt.Errorf("unable to create schedule %s, error:%w", schedule.id, err)
		}
	}
	return nil
}

func StartCronWorker(config *config.Config) error {
	var err error
	if wfClient == nil {
		wfClient, err = client.Dial(client.Options{
			HostPort: config.WorkFlow.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("unable to create workflow client, error:%w", err)
		}
	}
	wfWorker = worker.New(wfClient, CronJobQueueName, worker.Options{})
	wfWorker.RegisterWorkflow(ProcessInsightsWorkflow)
	wfWorker.RegisterWorkflow(MarkInsightsWorkflow)
	wfWorker.RegisterWorkflow(RefreshInsightsWorkflow)
	wfWorker.RegisterWorkflow(DownloadDatasetWorkflow)
	wfWorker.RegisterActivity(activity.ProcessInsights)
	wfWorker.RegisterActivity(activity.MarkInsights)
	wfWorker.RegisterActivity(activity.RefreshInsights)
	wfWorker.RegisterActivity(activity.DownloadDataset)

	return wfWorker.Start()
}

func StopWorker() {
	if wfWorker != nil {
		wfWorker.Stop()
	}
	if wfClient != nil {
		wfClient.Close()
	}
}
