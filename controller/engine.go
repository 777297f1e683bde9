package controller

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tft-perf/traffic-flow-tests/model"
	smodel "github.com/tft-perf/traffic-flow-tests/scheduler/model"
)

const (
	iperfPort   = 5201
	netperfPort = 12865
	httpPort    = 8080
	simplePort  = 7471
)

// flowResult is one parsed generator run.
type flowResult struct {
	Bitrate model.Bitrate
	Raw     map[string]interface{}
	Success bool
	Msg     string
}

// trafficEngine builds the commands for one test type and parses what the
// generator printed. Server commands must return immediately, the process
// they start keeps serving in the background.
type trafficEngine interface {
	Port() int32
	ServerCommand(flow *smodel.Flow, duration int) []string
	ClientCommand(flow *smodel.Flow, duration int, reverse bool) []string
	ParseOutput(stdout string) flowResult
}

func newTrafficEngine(conn *model.Connection) (trafficEngine, error) {
	switch conn.Type {
	case model.TestTypeIperfTCP:
		return &iperfEngine{}, nil
	case model.TestTypeIperfUDP:
		return &iperfEngine{udp: true}, nil
	case model.TestTypeNetperfTCPStream:
		return &netperfEngine{}, nil
	case model.TestTypeNetperfTCPRR:
		return &netperfEngine{rr: true}, nil
	case model.TestTypeHTTP:
		return &httpEngine{}, nil
	case model.TestTypeSimple:
		return &simpleEngine{conn: conn}, nil
	}
	return nil, makeUnknownTestTypeError(string(conn.Type))
}

func backgrounded(command string) []string {
	return []string{"sh", "-c", fmt.Sprintf("nohup %s > /tmp/tft-server.log 2>&1 &", command)}
}

type iperfEngine struct {
	udp bool
}

func (e *iperfEngine) Port() int32 {
	return iperfPort
}

func (e *iperfEngine) ServerCommand(flow *smodel.Flow, duration int) []string {
	return backgrounded(fmt.Sprintf("iperf3 -s -p %d", flow.Port))
}

func (e *iperfEngine) ClientCommand(flow *smodel.Flow, duration int, reverse bool) []string {
	cmd := []string{
		"iperf3", "-c", flow.ServerAddr,
		"-p", strconv.Itoa(int(flow.Port)),
		"-t", strconv.Itoa(duration),
		"--json",
	}
	if e.udp {
		// -b 0 removes the 1Mbit/s default cap.
		cmd = append(cmd, "-u", "-b", "0")
	}
	if reverse {
		cmd = append(cmd, "-R")
	}
	return cmd
}

func (e *iperfEngine) ParseOutput(stdout string) flowResult {
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		return flowResult{
			Bitrate: model.BitrateNA,
			Msg:     fmt.Sprintf("cannot parse iperf output: %s", err),
		}
	}
	if msg, ok := result["error"].(string); ok && msg != "" {
		return flowResult{Bitrate: model.BitrateNA, Raw: result, Msg: msg}
	}
	var tx, rx float64
	var txOk, rxOk bool
	if e.udp {
		bps, ok := nestedFloat(result, "end", "sum", "bits_per_second")
		tx, rx, txOk, rxOk = bps, bps, ok, ok
	} else {
		tx, txOk = nestedFloat(result, "end", "sum_sent", "bits_per_second")
		rx, rxOk = nestedFloat(result, "end", "sum_received", "bits_per_second")
	}
	if !txOk || !rxOk {
		return flowResult{
			Bitrate: model.BitrateNA,
			Raw:     result,
			Msg:     "iperf output carries no bitrate",
		}
	}
	return flowResult{
		Bitrate: model.NewBitrate(tx/1e9, rx/1e9),
		Raw:     result,
		Success: true,
	}
}

func nestedFloat(m map[string]interface{}, keys ...string) (float64, bool) {
	var current interface{} = m
	for _, key := range keys {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return 0, false
		}
		current = obj[key]
	}
	value, ok := current.(float64)
	return value, ok
}

type netperfEngine struct {
	rr bool
}

func (e *netperfEngine) Port() int32 {
	return netperfPort
}

func (e *netperfEngine) ServerCommand(flow *smodel.Flow, duration int) []string {
	// netserver daemonizes on its own.
	return []string{"netserver", "-p", strconv.Itoa(int(flow.Port))}
}

func (e *netperfEngine) ClientCommand(flow *smodel.Flow, duration int, reverse bool) []string {
	test := "TCP_STREAM"
	if e.rr {
		test = "TCP_RR"
	}
	// -P 0 drops the banner so only the data line remains.
	return []string{
		"netperf", "-H", flow.ServerAddr,
		"-p", strconv.Itoa(int(flow.Port)),
		"-t", test,
		"-l", strconv.Itoa(duration),
		"-P", "0",
	}
}

func (e *netperfEngine) ParseOutput(stdout string) flowResult {
	fields := strings.Fields(lastLine(stdout))
	if e.rr {
		// 16384 87380 1 1 10.00 14118.53
		if len(fields) < 6 {
			return flowResult{Bitrate: model.BitrateNA, Msg: "cannot parse netperf TCP_RR output"}
		}
		rate, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return flowResult{Bitrate: model.BitrateNA, Msg: "cannot parse netperf TCP_RR output"}
		}
		return flowResult{
			Bitrate: model.BitrateNA,
			Raw:     map[string]interface{}{"transactions_per_second": rate},
			Success: true,
		}
	}
	// 87380 16384 16384 10.00 9415.26
	if len(fields) < 5 {
		return flowResult{Bitrate: model.BitrateNA, Msg: "cannot parse netperf TCP_STREAM output"}
	}
	mbps, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return flowResult{Bitrate: model.BitrateNA, Msg: "cannot parse netperf TCP_STREAM output"}
	}
	gbps := mbps / 1000
	return flowResult{
		Bitrate: model.NewBitrate(gbps, gbps),
		Raw:     map[string]interface{}{"throughput_gbps": gbps},
		Success: true,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

type httpEngine struct{}

func (e *httpEngine) Port() int32 {
	return httpPort
}

func (e *httpEngine) ServerCommand(flow *smodel.Flow, duration int) []string {
	return backgrounded(fmt.Sprintf("python3 -m http.server %d", flow.Port))
}

func (e *httpEngine) ClientCommand(flow *smodel.Flow, duration int, reverse bool) []string {
	return []string{
		"curl", "-s", "-o", "/dev/null",
		"-w", "%{http_code}",
		"--max-time", strconv.Itoa(duration),
		fmt.Sprintf("http://%s:%d/", flow.ServerAddr, flow.Port),
	}
}

func (e *httpEngine) ParseOutput(stdout string) flowResult {
	code := strings.TrimSpace(stdout)
	result := flowResult{
		Bitrate: model.BitrateNA,
		Raw:     map[string]interface{}{"status_code": code},
	}
	if code == "200" {
		result.Success = true
		return result
	}
	result.Msg = fmt.Sprintf("unexpected HTTP status %q", code)
	return result
}

// simpleEngine runs whatever the connection configured, verbatim. Without
// configured args it degrades to a plain TCP connect probe. Success is the
// client command exiting zero, so parsing always succeeds here.
type simpleEngine struct {
	conn *model.Connection
}

func (e *simpleEngine) Port() int32 {
	return simplePort
}

func (e *simpleEngine) ServerCommand(flow *smodel.Flow, duration int) []string {
	if len(e.conn.Server.Args) == 0 {
		return backgrounded(fmt.Sprintf("nc -l -k -p %d", flow.Port))
	}
	return backgrounded(strings.Join(e.conn.Server.Args, " "))
}

func (e *simpleEngine) ClientCommand(flow *smodel.Flow, duration int, reverse bool) []string {
	if len(e.conn.Client.Args) == 0 {
		return []string{"nc", "-z", flow.ServerAddr, strconv.Itoa(int(flow.Port))}
	}
	return e.conn.Client.Args
}

func (e *simpleEngine) ParseOutput(stdout string) flowResult {
	return flowResult{
		Bitrate: model.BitrateNA,
		Raw:     map[string]interface{}{"output": strings.TrimSpace(stdout)},
		Success: true,
	}
}
