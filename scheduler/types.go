package scheduler

import (
	"context"

	"github.com/tft-perf/traffic-flow-tests/model"
	smodel "github.com/tft-perf/traffic-flow-tests/scheduler/model"
)

// FlowScheduler is what the controller needs from a cluster: deploy the
// pods for one plan item, run commands inside them, read their CPU usage
// and tear them down again. PurgeFlow is the coarse variant of teardown
// for cleaning up leftovers of earlier runs.
type FlowScheduler interface {
	SetupFlow(ctx context.Context, suite *model.TestSuite, item *model.PlanItem, port int32) (*smodel.Flow, error)
	TeardownFlow(ctx context.Context, flow *smodel.Flow) error
	PurgeFlow(ctx context.Context, namespace string, item *model.PlanItem) error
	Exec(ctx context.Context, namespace, pod string, command []string) (string, string, error)
	HostExec(ctx context.Context, namespace, pod string, command []string) (string, string, error)
	PodCPU(ctx context.Context, namespace, pod string) (int64, error)

	model.NADLookup
}
