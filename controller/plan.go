package controller

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tft-perf/traffic-flow-tests/model"
	"github.com/tft-perf/traffic-flow-tests/scheduler"
	smodel "github.com/tft-perf/traffic-flow-tests/scheduler/model"
	"github.com/tft-perf/traffic-flow-tests/utils"
)

// flowController drives one plan item: deploy the flow, run the traffic
// generator for every instance, take the plugin measurements and tear the
// flow down again.
type flowController struct {
	suite     *model.TestSuite
	item      *model.PlanItem
	scheduler scheduler.FlowScheduler
}

func newFlowController(suite *model.TestSuite, item *model.PlanItem, fs scheduler.FlowScheduler) *flowController {
	return &flowController{
		suite:     suite,
		item:      item,
		scheduler: fs,
	}
}

func (fc *flowController) run(ctx context.Context) ([]model.AggregateOutput, error) {
	conn := fc.item.Connection
	engine, err := newTrafficEngine(conn)
	if err != nil {
		return nil, err
	}

	var flow *smodel.Flow
	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	err = utils.Retry(func() error {
		flow, err = fc.scheduler.SetupFlow(setupCtx, fc.suite, fc.item, engine.Port())
		return err
	}, context.Canceled, context.DeadlineExceeded)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := fc.scheduler.TeardownFlow(context.Background(), flow); err != nil {
			log.Errorf("teardown of flow %s/%s failed: %s", fc.item.Case, conn.Name, err)
		}
	}()

	if err := fc.startServer(ctx, engine, flow); err != nil {
		return nil, err
	}

	var outputs []model.AggregateOutput
	for instance := 1; instance <= conn.Instances; instance++ {
		outputs = append(outputs, fc.runOnce(ctx, engine, flow, instance, false))
		if conn.Type.CanRunReverse() {
			outputs = append(outputs, fc.runOnce(ctx, engine, flow, instance, true))
		}
	}
	return outputs, nil
}

func (fc *flowController) startServer(ctx context.Context, engine trafficEngine, flow *smodel.Flow) error {
	if flow.ServerPod == "" {
		// External targets bring their own server.
		return nil
	}
	command := engine.ServerCommand(flow, fc.suite.Duration)
	if command == nil {
		return nil
	}
	_, stderr, err := fc.scheduler.Exec(ctx, flow.Namespace, flow.ServerPod, command)
	if err != nil {
		log.Errorf("starting server in pod %s: %s: %s", flow.ServerPod, err, stderr)
		return err
	}
	return nil
}

func (fc *flowController) runOnce(ctx context.Context, engine trafficEngine,
	flow *smodel.Flow, instance int, reverse bool) model.AggregateOutput {
	conn := fc.item.Connection
	command := engine.ClientCommand(flow, fc.suite.Duration, reverse)
	metadata := model.TestMetadata{
		SuiteName:  fc.suite.Name,
		TestCase:   fc.item.Case,
		TestType:   conn.Type,
		Reverse:    reverse,
		Instance:   instance,
		ServerNode: flow.ServerNode,
		ClientNode: flow.ClientNode,
		Network:    fc.item.Network,
	}
	log.Infof("running %s %s instance %d reverse=%t", fc.item.Case, conn.Type, instance, reverse)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	pluginOutputs := make([]*model.PluginOutput, len(conn.Plugins))
	for i, plugin := range conn.Plugins {
		runner := newPluginRunner(plugin)
		if runner == nil {
			continue
		}
		wg.Add(1)
		go func(i int, runner pluginRunner) {
			defer wg.Done()
			pluginOutputs[i] = runner.Run(runCtx, fc.scheduler, flow, fc.suite.Duration)
		}(i, runner)
	}

	started := time.Now()
	stdout, stderr, execErr := fc.scheduler.Exec(ctx, flow.Namespace, flow.ClientPod, command)
	elapsed := time.Since(started)
	wg.Wait()

	output := &model.FlowTestOutput{
		Metadata: metadata,
		Command:  strings.Join(command, " "),
	}
	result := engine.ParseOutput(stdout)
	output.Result = result.Raw
	output.BitrateGbps = result.Bitrate
	if execErr != nil {
		output.Success = false
		output.Msg = strings.TrimSpace(execErr.Error() + ": " + stderr)
	} else {
		output.Success = result.Success
		output.Msg = result.Msg
	}

	aggregate := model.AggregateOutput{FlowTest: output}
	for _, po := range pluginOutputs {
		if po != nil {
			aggregate.Plugins = append(aggregate.Plugins, *po)
		}
	}
	recordFlowMetrics(output, elapsed)
	return aggregate
}
