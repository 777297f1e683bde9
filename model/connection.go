package model

import (
	"fmt"
	"strings"
)

// TestType selects the traffic generator driving a connection. The values
// are the literal strings accepted in YAML, matched case-sensitively.
type TestType string

const (
	TestTypeIperfTCP         TestType = "iperf-tcp"
	TestTypeIperfUDP         TestType = "iperf-udp"
	TestTypeNetperfTCPStream TestType = "netperf-tcp-stream"
	TestTypeNetperfTCPRR     TestType = "netperf-tcp-rr"
	TestTypeHTTP             TestType = "http"
	TestTypeSimple           TestType = "simple"
)

var knownTestTypes = map[TestType]bool{
	TestTypeIperfTCP:         true,
	TestTypeIperfUDP:         true,
	TestTypeNetperfTCPStream: true,
	TestTypeNetperfTCPRR:     true,
	TestTypeHTTP:             true,
	TestTypeSimple:           true,
}

func (t TestType) Valid() bool {
	return knownTestTypes[t]
}

// CanRunReverse reports whether the generator supports a second run with
// the data direction flipped. Only iperf TCP does.
func (t TestType) CanRunReverse() bool {
	return t == TestTypeIperfTCP
}

// Plugin names a measurement attached to a connection for the duration of
// each test run.
type Plugin string

const (
	PluginMeasureCPU      Plugin = "measure_cpu"
	PluginMeasurePower    Plugin = "measure_power"
	PluginValidateOffload Plugin = "validate_offload"
)

var knownPlugins = map[Plugin]bool{
	PluginMeasureCPU:      true,
	PluginMeasurePower:    true,
	PluginValidateOffload: true,
}

func (p Plugin) Valid() bool {
	return knownPlugins[p]
}

// DefaultNetworkName is the default-network override applied when an
// endpoint does not name one.
const DefaultNetworkName = "default/default"

// DefaultSecondaryNAD is the network attachment assumed for
// secondary-network test cases when the connection names none.
const DefaultSecondaryNAD = "tft-secondary"

// Endpoint places one side of a connection. Name is the node the pod is
// pinned to. Persistent is only meaningful for servers; Args only for the
// "simple" test type.
type Endpoint struct {
	Name           string   `json:"name"`
	Sriov          bool     `json:"sriov"`
	DefaultNetwork string   `json:"default_network"`
	Persistent     bool     `json:"persistent,omitempty"`
	Args           []string `json:"args,omitempty"`
}

// Connection is one validated server/client pairing within a test suite.
type Connection struct {
	Name                string    `json:"name"`
	Type                TestType  `json:"type"`
	Instances           int       `json:"instances"`
	Server              *Endpoint `json:"server"`
	Client              *Endpoint `json:"client"`
	Plugins             []Plugin  `json:"plugins"`
	SecondaryNetworkNAD string    `json:"secondary_network_nad,omitempty"`
	ResourceName        string    `json:"resource_name,omitempty"`

	// Namespace is inherited from the owning suite; it qualifies relative
	// NAD names.
	Namespace string `json:"-"`
}

// EffectiveNAD returns the namespace-qualified NAD name the connection uses
// when a test case runs over a secondary network. An unset NAD falls back
// to the well-known default attachment.
func (c *Connection) EffectiveNAD() string {
	nad := c.SecondaryNetworkNAD
	if nad == "" {
		nad = DefaultSecondaryNAD
	}
	if !strings.Contains(nad, "/") {
		nad = fmt.Sprintf("%s/%s", c.Namespace, nad)
	}
	return nad
}
