package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tft-perf/traffic-flow-tests/model"
	smodel "github.com/tft-perf/traffic-flow-tests/scheduler/model"
)

const iperfTCPOutput = `{
	"start": {"version": "iperf 3.9"},
	"end": {
		"sum_sent": {"bits_per_second": 9415260000.0},
		"sum_received": {"bits_per_second": 9401130000.0}
	}
}`

const iperfUDPOutput = `{
	"end": {
		"sum": {"bits_per_second": 2350000000.0, "lost_percent": 0.01}
	}
}`

func testFlow() *smodel.Flow {
	return &smodel.Flow{
		Namespace:  "default",
		ServerPod:  "tft-server-1-0",
		ClientPod:  "tft-client-1-0",
		ServerAddr: "10.128.0.5",
		Port:       iperfPort,
	}
}

func TestIperfTCPParse(t *testing.T) {
	e := &iperfEngine{}
	result := e.ParseOutput(iperfTCPOutput)
	assert.True(t, result.Success)
	assert.InDelta(t, 9.41526, *result.Bitrate.Tx, 0.0001)
	assert.InDelta(t, 9.40113, *result.Bitrate.Rx, 0.0001)
}

func TestIperfUDPParse(t *testing.T) {
	e := &iperfEngine{udp: true}
	result := e.ParseOutput(iperfUDPOutput)
	assert.True(t, result.Success)
	assert.InDelta(t, 2.35, *result.Bitrate.Tx, 0.0001)
	assert.InDelta(t, 2.35, *result.Bitrate.Rx, 0.0001)
}

func TestIperfParseError(t *testing.T) {
	e := &iperfEngine{}

	result := e.ParseOutput(`{"error": "unable to connect to server"}`)
	assert.False(t, result.Success)
	assert.Equal(t, "unable to connect to server", result.Msg)
	assert.Nil(t, result.Bitrate.Tx)
	assert.Nil(t, result.Bitrate.Rx)

	result = e.ParseOutput("not json at all")
	assert.False(t, result.Success)
	assert.Nil(t, result.Bitrate.Tx)

	result = e.ParseOutput(`{"end": {}}`)
	assert.False(t, result.Success)
}

func TestIperfCommands(t *testing.T) {
	flow := testFlow()

	tcp := &iperfEngine{}
	cmd := tcp.ClientCommand(flow, 30, false)
	assert.Equal(t, []string{"iperf3", "-c", "10.128.0.5", "-p", "5201", "-t", "30", "--json"}, cmd)
	assert.Contains(t, tcp.ClientCommand(flow, 30, true), "-R")

	udp := &iperfEngine{udp: true}
	assert.Contains(t, udp.ClientCommand(flow, 30, false), "-u")

	server := tcp.ServerCommand(flow, 30)
	assert.Equal(t, "sh", server[0])
	assert.Contains(t, server[2], "iperf3 -s -p 5201")
}

func TestNetperfStreamParse(t *testing.T) {
	e := &netperfEngine{}
	result := e.ParseOutput(" 87380  16384  16384    10.00    9415.26\n")
	assert.True(t, result.Success)
	assert.InDelta(t, 9.41526, *result.Bitrate.Tx, 0.0001)
	assert.InDelta(t, 9.41526, *result.Bitrate.Rx, 0.0001)

	bad := e.ParseOutput("netperf: unable to connect")
	assert.False(t, bad.Success)
}

func TestNetperfRRParse(t *testing.T) {
	e := &netperfEngine{rr: true}
	result := e.ParseOutput(" 16384 87380  1        1       10.00    14118.53\n")
	assert.True(t, result.Success)
	assert.Nil(t, result.Bitrate.Tx)
	assert.InDelta(t, 14118.53, result.Raw["transactions_per_second"].(float64), 0.01)
}

func TestNetperfCommands(t *testing.T) {
	flow := testFlow()
	flow.Port = netperfPort
	stream := &netperfEngine{}
	assert.Contains(t, stream.ClientCommand(flow, 10, false), "TCP_STREAM")
	rr := &netperfEngine{rr: true}
	assert.Contains(t, rr.ClientCommand(flow, 10, false), "TCP_RR")
}

func TestHTTPEngine(t *testing.T) {
	e := &httpEngine{}
	ok := e.ParseOutput("200")
	assert.True(t, ok.Success)
	bad := e.ParseOutput("503")
	assert.False(t, bad.Success)
	assert.Contains(t, bad.Msg, "503")
}

func TestSimpleEngine(t *testing.T) {
	conn := &model.Connection{
		Type:   model.TestTypeSimple,
		Server: &model.Endpoint{Name: "worker-0", Args: []string{"nc", "-l", "8080"}},
		Client: &model.Endpoint{Name: "worker-1", Args: []string{"nc", "worker-0", "8080"}},
	}
	e, err := newTrafficEngine(conn)
	if err != nil {
		t.Fatal(err)
	}
	flow := testFlow()
	assert.Equal(t, []string{"nc", "worker-0", "8080"}, e.ClientCommand(flow, 10, false))
	server := e.ServerCommand(flow, 10)
	assert.Contains(t, server[2], "nc -l 8080")
}

func TestSimpleEngineDefaultProbe(t *testing.T) {
	conn := &model.Connection{
		Type:   model.TestTypeSimple,
		Server: &model.Endpoint{Name: "worker-0"},
		Client: &model.Endpoint{Name: "worker-1"},
	}
	e, err := newTrafficEngine(conn)
	if err != nil {
		t.Fatal(err)
	}
	flow := testFlow()
	client := e.ClientCommand(flow, 10, false)
	assert.Equal(t, "nc", client[0])
	assert.Contains(t, client, "-z")
	assert.Contains(t, e.ServerCommand(flow, 10)[2], "nc -l -k")
}

func TestNewTrafficEngineUnknownType(t *testing.T) {
	_, err := newTrafficEngine(&model.Connection{Type: model.TestType("bogus")})
	assert.ErrorIs(t, err, EngineError)
}
