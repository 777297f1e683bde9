package model

import (
	"fmt"
	"io/ioutil"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

const (
	DefaultNamespace = "default"
	DefaultDuration  = 3600
	DefaultLogsDir   = "ft-logs"
)

// Config is the parsed top-level test configuration file.
type Config struct {
	Tests           []*TestSuite `json:"tft"`
	Kubeconfig      string       `json:"kubeconfig,omitempty"`
	KubeconfigInfra string       `json:"kubeconfig_infra,omitempty"`
}

// TestSuite is one entry of the "tft" list: a set of test cases to run over
// a set of connections.
type TestSuite struct {
	Name          string        `json:"name"`
	Namespace     string        `json:"namespace"`
	TestCases     []TestCase    `json:"test_cases"`
	Duration      int           `json:"duration"`
	PrivilegedPod bool          `json:"privileged_pod"`
	Connections   []*Connection `json:"connections"`
	Logs          string        `json:"logs"`
}

type rawConfig struct {
	Tft             []rawSuite `yaml:"tft"`
	Kubeconfig      string     `yaml:"kubeconfig"`
	KubeconfigInfra string     `yaml:"kubeconfig_infra"`
}

type rawSuite struct {
	Name          string          `yaml:"name"`
	Namespace     string          `yaml:"namespace"`
	TestCases     interface{}     `yaml:"test_cases"`
	Duration      interface{}     `yaml:"duration"`
	PrivilegedPod bool            `yaml:"privileged_pod"`
	Connections   []rawConnection `yaml:"connections"`
	Logs          string          `yaml:"logs"`
}

type rawConnection struct {
	Name                string        `yaml:"name"`
	Type                string        `yaml:"type"`
	Instances           interface{}   `yaml:"instances"`
	Server              []rawEndpoint `yaml:"server"`
	Client              []rawEndpoint `yaml:"client"`
	Plugins             []interface{} `yaml:"plugins"`
	SecondaryNetworkNAD string        `yaml:"secondary_network_nad"`
	ResourceName        string        `yaml:"resource_name"`
}

type rawEndpoint struct {
	Name           string      `yaml:"name"`
	Sriov          bool        `yaml:"sriov"`
	DefaultNetwork string      `yaml:"default_network"`
	Persistent     bool        `yaml:"persistent"`
	Args           interface{} `yaml:"args"`
}

// LoadConfig reads and validates a configuration file. Any validation
// failure aborts the whole parse; there are no partial configs.
func LoadConfig(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration %s: %w", path, err)
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses the YAML document with top-level keys "tft",
// "kubeconfig" and "kubeconfig_infra".
func ParseConfig(data []byte) (*Config, error) {
	var rc rawConfig
	if err := yaml.UnmarshalStrict(data, &rc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if len(rc.Tft) == 0 {
		return nil, newValidationError(ErrInvalidConfig, "tft", "", "at least one test entry is required")
	}
	if rc.KubeconfigInfra != "" && rc.Kubeconfig == "" {
		return nil, newValidationError(ErrInvalidConfig, "kubeconfig", "", "required when kubeconfig_infra is given")
	}

	cfg := &Config{
		Kubeconfig:      rc.Kubeconfig,
		KubeconfigInfra: rc.KubeconfigInfra,
	}
	for i, rs := range rc.Tft {
		ts, err := parseSuite(rs, i)
		if err != nil {
			return nil, err
		}
		cfg.Tests = append(cfg.Tests, ts)
	}
	return cfg, nil
}

func parseSuite(rs rawSuite, idx int) (*TestSuite, error) {
	fieldPath := fmt.Sprintf("tft[%d]", idx)

	name := rs.Name
	if name == "" {
		name = fmt.Sprintf("Test %d", idx+1)
	}
	namespace := rs.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	cases, err := ParseTestCases(rs.TestCases)
	if err != nil {
		return nil, err
	}

	duration, err := parseDuration(rs.Duration, fieldPath+".duration")
	if err != nil {
		return nil, err
	}

	logs := rs.Logs
	if logs == "" {
		logs = DefaultLogsDir
	}

	if len(rs.Connections) == 0 {
		return nil, newValidationError(ErrInvalidConfig, fieldPath+".connections", "", "at least one connection is required")
	}
	var connections []*Connection
	for i, rconn := range rs.Connections {
		conn, err := parseConnection(rconn, name, namespace, fmt.Sprintf("%s.connections[%d]", fieldPath, i), i)
		if err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}

	return &TestSuite{
		Name:          name,
		Namespace:     namespace,
		TestCases:     cases,
		Duration:      duration,
		PrivilegedPod: rs.PrivilegedPod,
		Connections:   connections,
		Logs:          logs,
	}, nil
}

func parseDuration(v interface{}, field string) (int, error) {
	switch d := v.(type) {
	case nil:
		return DefaultDuration, nil
	case int:
		if d < 0 {
			return 0, newValidationError(ErrInvalidDuration, field, fmt.Sprintf("%d", d), "duration must not be negative")
		}
		if d == 0 {
			return DefaultDuration, nil
		}
		return d, nil
	default:
		return 0, newValidationError(ErrInvalidDuration, field, fmt.Sprintf("%v", v), "duration must be a number of seconds")
	}
}

func parseInstances(v interface{}, field string) (int, error) {
	switch n := v.(type) {
	case nil:
		return 1, nil
	case int:
		if n <= 0 {
			return 0, newValidationError(ErrInvalidInstances, field, fmt.Sprintf("%d", n), "instances must be positive")
		}
		return n, nil
	default:
		return 0, newValidationError(ErrInvalidInstances, field, fmt.Sprintf("%v", v), "instances must be an integer")
	}
}

func parseConnection(rc rawConnection, testName, namespace, fieldPath string, idx int) (*Connection, error) {
	name := rc.Name
	if name == "" {
		name = fmt.Sprintf("Connection %s/%d", testName, idx+1)
	}

	testType := TestType(rc.Type)
	if rc.Type == "" {
		testType = TestTypeIperfTCP
	}
	if !testType.Valid() {
		return nil, newValidationError(ErrUnknownConnectionType, fieldPath+".type", rc.Type, "")
	}

	instances, err := parseInstances(rc.Instances, fieldPath+".instances")
	if err != nil {
		return nil, err
	}

	if len(rc.Server) != 1 {
		return nil, newValidationError(ErrInvalidConfig, fieldPath+".server", "", "exactly one server entry is required")
	}
	if len(rc.Client) != 1 {
		return nil, newValidationError(ErrInvalidConfig, fieldPath+".client", "", "exactly one client entry is required")
	}
	server, err := parseEndpoint(rc.Server[0], testType, true, fieldPath+".server[0]")
	if err != nil {
		return nil, err
	}
	client, err := parseEndpoint(rc.Client[0], testType, false, fieldPath+".client[0]")
	if err != nil {
		return nil, err
	}

	var plugins []Plugin
	for i, entry := range rc.Plugins {
		p, err := parsePlugin(entry, fmt.Sprintf("%s.plugins[%d]", fieldPath, i))
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}

	return &Connection{
		Name:                name,
		Type:                testType,
		Instances:           instances,
		Server:              server,
		Client:              client,
		Plugins:             plugins,
		SecondaryNetworkNAD: rc.SecondaryNetworkNAD,
		ResourceName:        rc.ResourceName,
		Namespace:           namespace,
	}, nil
}

func parseEndpoint(re rawEndpoint, testType TestType, isServer bool, fieldPath string) (*Endpoint, error) {
	if re.Name == "" {
		return nil, newValidationError(ErrInvalidConfig, fieldPath+".name", "", "node name is required")
	}
	defaultNetwork := re.DefaultNetwork
	if defaultNetwork == "" {
		defaultNetwork = DefaultNetworkName
	}

	args, err := parseArgs(re.Args, fieldPath+".args")
	if err != nil {
		return nil, err
	}
	if args != nil && testType != TestTypeSimple {
		return nil, newValidationError(ErrInvalidConfig, fieldPath+".args",
			strings.Join(args, " "), fmt.Sprintf("not supported with test type %q", testType))
	}
	if re.Persistent && !isServer {
		return nil, newValidationError(ErrInvalidConfig, fieldPath+".persistent", "true", "only servers can be persistent")
	}

	return &Endpoint{
		Name:           re.Name,
		Sriov:          re.Sriov,
		DefaultNetwork: defaultNetwork,
		Persistent:     re.Persistent,
		Args:           args,
	}, nil
}

func parseArgs(v interface{}, field string) ([]string, error) {
	switch args := v.(type) {
	case nil:
		return nil, nil
	case string:
		// Whitespace split only; quoting is not supported, use the list
		// form for arguments containing spaces.
		return strings.Fields(args), nil
	case []interface{}:
		out := make([]string, 0, len(args))
		for _, a := range args {
			s, ok := a.(string)
			if !ok {
				return nil, newValidationError(ErrInvalidConfig, field, fmt.Sprintf("%v", a), "args must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, newValidationError(ErrInvalidConfig, field, fmt.Sprintf("%v", v), "args must be a string or a list of strings")
	}
}

func parsePlugin(entry interface{}, field string) (Plugin, error) {
	var name string
	switch e := entry.(type) {
	case string:
		name = e
	case map[interface{}]interface{}:
		// The list entry may be a mapping with a "name" key instead of a
		// plain string.
		n, ok := e["name"].(string)
		if !ok {
			return "", newValidationError(ErrUnknownPlugin, field, fmt.Sprintf("%v", entry), "plugin entry needs a name")
		}
		name = n
	default:
		return "", newValidationError(ErrUnknownPlugin, field, fmt.Sprintf("%v", entry), "plugin entry must be a string or a mapping")
	}

	p := Plugin(name)
	if !p.Valid() {
		return "", newValidationError(ErrUnknownPlugin, field, name, "")
	}
	return p, nil
}
