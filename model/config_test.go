package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const fullConfig = `
tft:
  - name: "Test 1"
    namespace: "default"
    test_cases: "1,2,HOST_TO_POD_DIFF_NODE,17-19"
    duration: 30
    connections:
      - name: con1
        type: iperf-tcp
        instances: 2
        server:
          - name: worker-0
            persistent: true
        client:
          - name: worker-1
            sriov: true
        plugins:
          - name: measure_cpu
          - measure_power
      - name: con2
        type: simple
        server:
          - name: worker-0
            args:
              - "nc -l 8080"
        client:
          - name: worker-1
            args: "nc worker-0 8080"
        secondary_network_nad: my-vlan
        resource_name: intel.com/sriov_netdevice
kubeconfig: /path/to/kubeconfig
kubeconfig_infra: /path/to/kubeconfig_infra
`

func TestParseConfigFull(t *testing.T) {
	cfg, err := ParseConfig([]byte(fullConfig))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "/path/to/kubeconfig", cfg.Kubeconfig)
	assert.Equal(t, "/path/to/kubeconfig_infra", cfg.KubeconfigInfra)
	assert.Len(t, cfg.Tests, 1)

	ts := cfg.Tests[0]
	assert.Equal(t, "Test 1", ts.Name)
	assert.Equal(t, "default", ts.Namespace)
	assert.Equal(t, 30, ts.Duration)
	assert.Equal(t, []TestCase{
		PodToPodSameNode,
		PodToPodDiffNode,
		HostToPodDiffNode,
		HostToClusterIPToPodSameNode,
		HostToClusterIPToPodDiffNode,
		HostToClusterIPToHostSameNode,
	}, ts.TestCases)

	con1 := ts.Connections[0]
	assert.Equal(t, "con1", con1.Name)
	assert.Equal(t, TestTypeIperfTCP, con1.Type)
	assert.Equal(t, 2, con1.Instances)
	assert.True(t, con1.Server.Persistent)
	assert.True(t, con1.Client.Sriov)
	assert.Equal(t, DefaultNetworkName, con1.Server.DefaultNetwork)
	assert.Equal(t, []Plugin{PluginMeasureCPU, PluginMeasurePower}, con1.Plugins)

	con2 := ts.Connections[1]
	assert.Equal(t, TestTypeSimple, con2.Type)
	assert.Equal(t, []string{"nc -l 8080"}, con2.Server.Args)
	assert.Equal(t, []string{"nc", "worker-0", "8080"}, con2.Client.Args)
	assert.Equal(t, "my-vlan", con2.SecondaryNetworkNAD)
	assert.Equal(t, "intel.com/sriov_netdevice", con2.ResourceName)
	assert.Equal(t, "default", con2.Namespace)
	assert.Equal(t, "default/my-vlan", con2.EffectiveNAD())
}

func TestParseConfigDefaults(t *testing.T) {
	minimal := `
tft:
  - connections:
      - server:
          - name: worker-0
        client:
          - name: worker-1
`
	cfg, err := ParseConfig([]byte(minimal))
	if err != nil {
		t.Fatal(err)
	}
	ts := cfg.Tests[0]
	assert.Equal(t, "Test 1", ts.Name)
	assert.Equal(t, DefaultNamespace, ts.Namespace)
	assert.Equal(t, DefaultDuration, ts.Duration)
	assert.Equal(t, DefaultLogsDir, ts.Logs)
	assert.Equal(t, AllTestCases(), ts.TestCases)

	conn := ts.Connections[0]
	assert.Equal(t, "Connection Test 1/1", conn.Name)
	assert.Equal(t, TestTypeIperfTCP, conn.Type)
	assert.Equal(t, 1, conn.Instances)
	assert.Empty(t, conn.Plugins)
}

func parseConfigExpectingError(t *testing.T, doc string) error {
	t.Helper()
	_, err := ParseConfig([]byte(doc))
	if err == nil {
		t.Fatalf("expected error for config:\n%s", doc)
	}
	return err
}

func TestParseConfigUnknownConnectionType(t *testing.T) {
	err := parseConfigExpectingError(t, `
tft:
  - connections:
      - type: bogus
        server:
          - name: worker-0
        client:
          - name: worker-1
`)
	assert.True(t, errors.Is(err, ErrUnknownConnectionType), "%v", err)

	// The match is case-sensitive.
	err = parseConfigExpectingError(t, `
tft:
  - connections:
      - type: IPERF-TCP
        server:
          - name: worker-0
        client:
          - name: worker-1
`)
	assert.True(t, errors.Is(err, ErrUnknownConnectionType), "%v", err)
}

func TestParseConfigUnknownPlugin(t *testing.T) {
	err := parseConfigExpectingError(t, `
tft:
  - connections:
      - server:
          - name: worker-0
        client:
          - name: worker-1
        plugins:
          - measure_nothing
`)
	assert.True(t, errors.Is(err, ErrUnknownPlugin), "%v", err)
}

func TestParseConfigInvalidDuration(t *testing.T) {
	err := parseConfigExpectingError(t, `
tft:
  - duration: -5
    connections:
      - server:
          - name: worker-0
        client:
          - name: worker-1
`)
	assert.True(t, errors.Is(err, ErrInvalidDuration), "%v", err)

	err = parseConfigExpectingError(t, `
tft:
  - duration: "a minute"
    connections:
      - server:
          - name: worker-0
        client:
          - name: worker-1
`)
	assert.True(t, errors.Is(err, ErrInvalidDuration), "%v", err)

	// Zero means "use the default", not an error.
	cfg, err := ParseConfig([]byte(`
tft:
  - duration: 0
    connections:
      - server:
          - name: worker-0
        client:
          - name: worker-1
`))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, DefaultDuration, cfg.Tests[0].Duration)
}

func TestParseConfigInvalidInstances(t *testing.T) {
	for _, instances := range []string{"0", "-1", `"three"`} {
		err := parseConfigExpectingError(t, `
tft:
  - connections:
      - instances: `+instances+`
        server:
          - name: worker-0
        client:
          - name: worker-1
`)
		assert.True(t, errors.Is(err, ErrInvalidInstances), "instances=%s: %v", instances, err)
	}
}

func TestParseConfigInvalidSelector(t *testing.T) {
	err := parseConfigExpectingError(t, `
tft:
  - test_cases: "99"
    connections:
      - server:
          - name: worker-0
        client:
          - name: worker-1
`)
	assert.True(t, errors.Is(err, ErrInvalidSelector), "%v", err)
}

func TestParseConfigStructuralErrors(t *testing.T) {
	// kubeconfig_infra without kubeconfig.
	err := parseConfigExpectingError(t, `
tft:
  - connections:
      - server:
          - name: worker-0
        client:
          - name: worker-1
kubeconfig_infra: /path/to/infra
`)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)

	// No tests at all.
	err = parseConfigExpectingError(t, `{}`)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)

	// A connection without a server.
	err = parseConfigExpectingError(t, `
tft:
  - connections:
      - client:
          - name: worker-1
`)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)

	// args are reserved for the simple test type.
	err = parseConfigExpectingError(t, `
tft:
  - connections:
      - type: iperf-tcp
        server:
          - name: worker-0
            args: "iperf3 -s"
        client:
          - name: worker-1
`)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)

	// persistent is a server-side flag.
	err = parseConfigExpectingError(t, `
tft:
  - connections:
      - server:
          - name: worker-0
        client:
          - name: worker-1
            persistent: true
`)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)
}

func TestValidationErrorMessage(t *testing.T) {
	err := parseConfigExpectingError(t, `
tft:
  - connections:
      - type: bogus
        server:
          - name: worker-0
        client:
          - name: worker-1
`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	assert.Equal(t, "tft[0].connections[0].type", verr.Field)
	assert.Equal(t, "bogus", verr.Value)
	assert.Contains(t, verr.Error(), "bogus")
	assert.Contains(t, verr.Error(), "tft[0].connections[0].type")
}
