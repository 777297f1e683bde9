package controller

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tft-perf/traffic-flow-tests/model"
	"github.com/tft-perf/traffic-flow-tests/scheduler"
	smodel "github.com/tft-perf/traffic-flow-tests/scheduler/model"
)

// pluginRunner takes one measurement while the traffic run is in flight.
// Run is invoked concurrently with the client command and owns its own
// timing within the run window.
type pluginRunner interface {
	Name() model.Plugin
	Run(ctx context.Context, fs scheduler.FlowScheduler, flow *smodel.Flow, duration int) *model.PluginOutput
}

func newPluginRunner(plugin model.Plugin) pluginRunner {
	switch plugin {
	case model.PluginMeasureCPU:
		return &cpuPlugin{}
	case model.PluginMeasurePower:
		return &powerPlugin{}
	case model.PluginValidateOffload:
		return &offloadPlugin{}
	}
	// Config validation rejects unknown plugins before a plan runs.
	return nil
}

func failedPlugin(name model.Plugin, command string, err error) *model.PluginOutput {
	return &model.PluginOutput{
		Plugin:  name,
		Command: command,
		Msg:     err.Error(),
	}
}

// cpuPlugin samples the metrics API halfway through the run, when the
// generator is at steady state.
type cpuPlugin struct{}

func (p *cpuPlugin) Name() model.Plugin {
	return model.PluginMeasureCPU
}

func (p *cpuPlugin) Run(ctx context.Context, fs scheduler.FlowScheduler,
	flow *smodel.Flow, duration int) *model.PluginOutput {
	select {
	case <-ctx.Done():
		return failedPlugin(p.Name(), "", ctx.Err())
	case <-time.After(time.Duration(duration/2) * time.Second):
	}
	result := map[string]interface{}{}
	pods := map[string]string{"client": flow.ClientPod}
	if flow.ServerPod != "" {
		pods["server"] = flow.ServerPod
	}
	for role, pod := range pods {
		milli, err := fs.PodCPU(ctx, flow.Namespace, pod)
		if err != nil {
			log.Warnf("cannot read CPU of pod %s: %s", pod, err)
			continue
		}
		result[role+"_cpu_millicores"] = milli
	}
	return &model.PluginOutput{
		Plugin:  p.Name(),
		Success: len(result) > 0,
		Result:  result,
	}
}

// powerPlugin reads the chassis power draw over IPMI mid-run. On DPU
// clusters the reading comes from the infra side.
type powerPlugin struct{}

func (p *powerPlugin) Name() model.Plugin {
	return model.PluginMeasurePower
}

func (p *powerPlugin) Run(ctx context.Context, fs scheduler.FlowScheduler,
	flow *smodel.Flow, duration int) *model.PluginOutput {
	select {
	case <-ctx.Done():
		return failedPlugin(p.Name(), "", ctx.Err())
	case <-time.After(time.Duration(duration/2) * time.Second):
	}
	command := []string{"ipmitool", "dcmi", "power", "reading"}
	pod := flow.ClientPod
	stdout, stderr, err := fs.HostExec(ctx, flow.Namespace, pod, command)
	commandStr := strings.Join(command, " ")
	if err != nil {
		return failedPlugin(p.Name(), commandStr, fmt.Errorf("%s: %s", err, stderr))
	}
	watts, err := parsePowerReading(stdout)
	if err != nil {
		return failedPlugin(p.Name(), commandStr, err)
	}
	return &model.PluginOutput{
		Plugin:  p.Name(),
		Success: true,
		Command: commandStr,
		Result:  map[string]interface{}{"power_watts": watts},
	}
}

// parsePowerReading extracts the wattage from ipmitool output, e.g.
// "    Instantaneous power reading:             212 Watts".
func parsePowerReading(output string) (float64, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Instantaneous power reading") {
			continue
		}
		fields := strings.Fields(line)
		for i, field := range fields {
			if field == "Watts" && i > 0 {
				return strconv.ParseFloat(fields[i-1], 64)
			}
		}
	}
	return 0, fmt.Errorf("no power reading in ipmitool output")
}

// offloadPlugin checks hardware offload by sampling the secondary
// interface's ethtool counters before and after the run. Traffic that is
// offloaded to the NIC barely moves the kernel-visible packet counters.
type offloadPlugin struct{}

const offloadInterface = "net1"

// Packets attributable to the run's control traffic rather than the data
// path. Counts above this mean the flows went through the kernel.
const offloadPacketThreshold = 10000

func (p *offloadPlugin) Name() model.Plugin {
	return model.PluginValidateOffload
}

func (p *offloadPlugin) Run(ctx context.Context, fs scheduler.FlowScheduler,
	flow *smodel.Flow, duration int) *model.PluginOutput {
	command := []string{"ethtool", "-S", offloadInterface}
	commandStr := strings.Join(command, " ")

	before, err := p.sample(ctx, fs, flow, command)
	if err != nil {
		return failedPlugin(p.Name(), commandStr, err)
	}
	select {
	case <-ctx.Done():
		return failedPlugin(p.Name(), commandStr, ctx.Err())
	case <-time.After(time.Duration(duration) * time.Second):
	}
	after, err := p.sample(ctx, fs, flow, command)
	if err != nil {
		return failedPlugin(p.Name(), commandStr, err)
	}

	rxDelta := after["rx_packets"] - before["rx_packets"]
	txDelta := after["tx_packets"] - before["tx_packets"]
	offloaded := rxDelta < offloadPacketThreshold && txDelta < offloadPacketThreshold
	out := &model.PluginOutput{
		Plugin:  p.Name(),
		Success: offloaded,
		Command: commandStr,
		Result: map[string]interface{}{
			"rx_packet_delta": rxDelta,
			"tx_packet_delta": txDelta,
		},
	}
	if !offloaded {
		out.Msg = fmt.Sprintf("traffic went through the kernel: rx delta %d, tx delta %d", rxDelta, txDelta)
	}
	return out
}

func (p *offloadPlugin) sample(ctx context.Context, fs scheduler.FlowScheduler,
	flow *smodel.Flow, command []string) (map[string]int64, error) {
	stdout, stderr, err := fs.Exec(ctx, flow.Namespace, flow.ClientPod, command)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", err, stderr)
	}
	return parseEthtoolStats(stdout), nil
}

// parseEthtoolStats turns "    rx_packets: 1234" lines into a counter map.
func parseEthtoolStats(output string) map[string]int64 {
	stats := make(map[string]int64)
	for _, line := range strings.Split(output, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		count, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			continue
		}
		stats[strings.TrimSpace(name)] = count
	}
	return stats
}
