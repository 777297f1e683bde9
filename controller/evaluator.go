package controller

import (
	"fmt"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"

	"github.com/tft-perf/traffic-flow-tests/model"
)

// Evaluator grades suite results against configured minimum bitrates. An
// empty evaluator only checks the success flags.
type Evaluator struct {
	// MinBitrateGbps maps a test type to the lowest acceptable bitrate.
	// Both directions of a run have to clear it.
	MinBitrateGbps map[string]float64 `yaml:"min_bitrate_gbps"`
}

func LoadEvalConfig(path string) (*Evaluator, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read evaluator config %s: %w", path, err)
	}
	ev := new(Evaluator)
	if err := yaml.UnmarshalStrict(data, ev); err != nil {
		return nil, fmt.Errorf("cannot parse evaluator config %s: %w", path, err)
	}
	return ev, nil
}

// EvalResult is the verdict over one set of suite results.
type EvalResult struct {
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// Evaluate checks every flow output: it must have succeeded, and when a
// minimum bitrate is configured for its test type, both directions have
// to reach it.
func (ev *Evaluator) Evaluate(results []*model.SuiteResult) *EvalResult {
	verdict := &EvalResult{Passed: true}
	for _, result := range results {
		for _, out := range result.Outputs {
			ft := out.FlowTest
			if ft == nil {
				continue
			}
			name := fmt.Sprintf("%s/%s/%s instance %d reverse=%t",
				result.SuiteName, ft.Metadata.TestCase, ft.Metadata.TestType,
				ft.Metadata.Instance, ft.Metadata.Reverse)
			if !ft.Success {
				verdict.fail(fmt.Sprintf("%s: failed: %s", name, ft.Msg))
				continue
			}
			min, ok := ev.MinBitrateGbps[string(ft.Metadata.TestType)]
			if !ok {
				continue
			}
			if ft.BitrateGbps.Tx == nil || ft.BitrateGbps.Rx == nil {
				verdict.fail(fmt.Sprintf("%s: no bitrate to compare against the %g Gbps minimum", name, min))
				continue
			}
			if *ft.BitrateGbps.Tx < min || *ft.BitrateGbps.Rx < min {
				verdict.fail(fmt.Sprintf("%s: bitrate tx %.2f / rx %.2f Gbps below the %g Gbps minimum",
					name, *ft.BitrateGbps.Tx, *ft.BitrateGbps.Rx, min))
			}
		}
	}
	return verdict
}

func (r *EvalResult) fail(reason string) {
	r.Passed = false
	r.Failures = append(r.Failures, reason)
}
