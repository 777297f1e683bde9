package controller

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tft-perf/traffic-flow-tests/model"
	"github.com/tft-perf/traffic-flow-tests/scheduler"
)

// Controller runs resolved plans against the cluster, one item at a time.
// Items run sequentially so the flows never share the wire.
type Controller struct {
	Scheduler scheduler.FlowScheduler

	statusStore sync.Map
}

func NewController(fs scheduler.FlowScheduler) *Controller {
	return &Controller{
		Scheduler: fs,
	}
}

// RunStatus is the live state of one suite run, served by the status API.
type RunStatus struct {
	Suite       string    `json:"suite"`
	TestCase    string    `json:"test_case,omitempty"`
	Connection  string    `json:"connection,omitempty"`
	Finished    int       `json:"finished"`
	Total       int       `json:"total"`
	StartedTime time.Time `json:"started_time"`
}

// RunConfig resolves and runs every suite of a parsed configuration, in
// order, and returns one result per suite. A suite that fails to resolve
// aborts the whole run; individual flow failures do not.
func (c *Controller) RunConfig(ctx context.Context, cfg *model.Config) ([]*model.SuiteResult, error) {
	var results []*model.SuiteResult
	for _, suite := range cfg.Tests {
		result, err := c.RunSuite(ctx, suite)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// RunSuite resolves one suite into its plan and executes every item.
func (c *Controller) RunSuite(ctx context.Context, suite *model.TestSuite) (*model.SuiteResult, error) {
	plan, err := model.ResolvePlan(suite, c.Scheduler)
	if err != nil {
		return nil, err
	}
	status := &RunStatus{
		Suite:       suite.Name,
		Total:       len(plan.Items),
		StartedTime: time.Now(),
	}
	c.publishStatus(status)

	result := &model.SuiteResult{SuiteName: suite.Name}
	for i := range plan.Items {
		item := &plan.Items[i]
		status.TestCase = item.Case.String()
		status.Connection = item.Connection.Name
		c.publishStatus(status)
		outputs, err := newFlowController(suite, item, c.Scheduler).run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// A flow that never came up still has to show in the results.
			log.Errorf("flow %s/%s failed: %s", item.Case, item.Connection.Name, err)
			outputs = []model.AggregateOutput{failedFlowOutput(suite, item, err)}
		}
		result.Outputs = append(result.Outputs, outputs...)
		status.Finished = i + 1
		c.publishStatus(status)
	}
	return result, nil
}

// publishStatus stores a snapshot so API readers never share a struct the
// run loop keeps mutating.
func (c *Controller) publishStatus(status *RunStatus) {
	snapshot := *status
	c.statusStore.Store(status.Suite, &snapshot)
}

// CleanupConfig removes every workload a previous run of this
// configuration may have left behind, persistent servers included.
func (c *Controller) CleanupConfig(ctx context.Context, cfg *model.Config) error {
	for _, suite := range cfg.Tests {
		plan, err := model.ResolvePlan(suite, c.Scheduler)
		if err != nil {
			return err
		}
		for i := range plan.Items {
			item := &plan.Items[i]
			log.Infof("purging leftovers of %s/%s", item.Case, item.Connection.Name)
			if err := c.Scheduler.PurgeFlow(ctx, suite.Namespace, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func failedFlowOutput(suite *model.TestSuite, item *model.PlanItem, err error) model.AggregateOutput {
	return model.AggregateOutput{
		FlowTest: &model.FlowTestOutput{
			Msg: err.Error(),
			Metadata: model.TestMetadata{
				SuiteName:  suite.Name,
				TestCase:   item.Case,
				TestType:   item.Connection.Type,
				ServerNode: item.Connection.Server.Name,
				ClientNode: item.Connection.Client.Name,
				Network:    item.Network,
			},
			BitrateGbps: model.BitrateNA,
		},
	}
}

// Status returns the live state of every suite this controller has run.
func (c *Controller) Status() []*RunStatus {
	var statuses []*RunStatus
	c.statusStore.Range(func(_, value interface{}) bool {
		statuses = append(statuses, value.(*RunStatus))
		return true
	})
	return statuses
}
