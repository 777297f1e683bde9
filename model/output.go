package model

// Bitrate is the measured throughput of one flow test in Gbps. Nil sides
// mean the generator produced no usable number (failed runs, probe types).
type Bitrate struct {
	Tx *float64 `json:"tx"`
	Rx *float64 `json:"rx"`
}

// BitrateNA is the bitrate of a failed or non-measuring run.
var BitrateNA = Bitrate{}

func NewBitrate(tx, rx float64) Bitrate {
	return Bitrate{Tx: &tx, Rx: &rx}
}

// TestMetadata pins an output to the plan item and repetition it came from.
type TestMetadata struct {
	SuiteName  string     `json:"suite_name"`
	TestCase   TestCase   `json:"test_case_id"`
	TestType   TestType   `json:"test_type"`
	Reverse    bool       `json:"reverse"`
	Instance   int        `json:"instance"`
	ServerNode string     `json:"server_node"`
	ClientNode string     `json:"client_node"`
	Network    NetworkRef `json:"network"`
}

// FlowTestOutput is the machine-readable result of one traffic run: the
// exact command, the generator's parsed output and the extracted bitrate.
type FlowTestOutput struct {
	Success     bool                   `json:"success"`
	Msg         string                 `json:"msg,omitempty"`
	Metadata    TestMetadata           `json:"tft_metadata"`
	Command     string                 `json:"command"`
	Result      map[string]interface{} `json:"result"`
	BitrateGbps Bitrate                `json:"bitrate_gbps"`
}

// PluginOutput is the result of one measurement plugin run alongside a
// flow test.
type PluginOutput struct {
	Plugin  Plugin                 `json:"plugin"`
	Success bool                   `json:"success"`
	Msg     string                 `json:"msg,omitempty"`
	Command string                 `json:"command,omitempty"`
	Result  map[string]interface{} `json:"result"`
}

// AggregateOutput groups a flow test with the plugin measurements taken
// during it.
type AggregateOutput struct {
	FlowTest *FlowTestOutput `json:"flow_test"`
	Plugins  []PluginOutput  `json:"plugins"`
}

// SuiteResult is the content of one result file: everything one suite run
// produced, in execution order.
type SuiteResult struct {
	SuiteName string            `json:"suite_name"`
	Outputs   []AggregateOutput `json:"tft_results"`
}

// Failed returns the outputs whose flow test did not succeed.
func (r *SuiteResult) Failed() []AggregateOutput {
	var failed []AggregateOutput
	for _, out := range r.Outputs {
		if out.FlowTest == nil || !out.FlowTest.Success {
			failed = append(failed, out)
		}
	}
	return failed
}
