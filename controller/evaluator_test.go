package controller

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tft-perf/traffic-flow-tests/model"
)

func successfulResult(testType model.TestType, tx, rx float64) []*model.SuiteResult {
	return []*model.SuiteResult{
		{
			SuiteName: "Test 1",
			Outputs: []model.AggregateOutput{
				{
					FlowTest: &model.FlowTestOutput{
						Success: true,
						Metadata: model.TestMetadata{
							SuiteName: "Test 1",
							TestCase:  model.PodToPodSameNode,
							TestType:  testType,
							Instance:  1,
						},
						BitrateGbps: model.NewBitrate(tx, rx),
					},
				},
			},
		},
	}
}

func TestEvaluatePasses(t *testing.T) {
	ev := &Evaluator{MinBitrateGbps: map[string]float64{"iperf-tcp": 5}}
	verdict := ev.Evaluate(successfulResult(model.TestTypeIperfTCP, 9.4, 9.4))
	assert.True(t, verdict.Passed)
	assert.Empty(t, verdict.Failures)
}

func TestEvaluateBitrateBelowMinimum(t *testing.T) {
	ev := &Evaluator{MinBitrateGbps: map[string]float64{"iperf-tcp": 5}}
	verdict := ev.Evaluate(successfulResult(model.TestTypeIperfTCP, 9.4, 3.1))
	assert.False(t, verdict.Passed)
	assert.Len(t, verdict.Failures, 1)
	assert.Contains(t, verdict.Failures[0], "below the 5 Gbps minimum")
}

func TestEvaluateFailedFlow(t *testing.T) {
	results := successfulResult(model.TestTypeIperfTCP, 9.4, 9.4)
	results[0].Outputs[0].FlowTest.Success = false
	results[0].Outputs[0].FlowTest.Msg = "unable to connect to server"

	verdict := new(Evaluator).Evaluate(results)
	assert.False(t, verdict.Passed)
	assert.Contains(t, verdict.Failures[0], "unable to connect to server")
}

func TestEvaluateUnmeasuredType(t *testing.T) {
	// No minimum configured for the type means the success flag decides.
	results := successfulResult(model.TestTypeHTTP, 0, 0)
	results[0].Outputs[0].FlowTest.BitrateGbps = model.BitrateNA
	verdict := new(Evaluator).Evaluate(results)
	assert.True(t, verdict.Passed)
}

func TestLoadEvalConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.yaml")
	doc := `
min_bitrate_gbps:
  iperf-tcp: 5
  iperf-udp: 1.5
`
	if err := ioutil.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	ev, err := LoadEvalConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 5.0, ev.MinBitrateGbps["iperf-tcp"])
	assert.Equal(t, 1.5, ev.MinBitrateGbps["iperf-udp"])

	_, err = LoadEvalConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResultsPath(t *testing.T) {
	now := time.Date(2024, 5, 17, 10, 4, 5, 0, time.UTC)
	assert.Equal(t, filepath.Join("ft-logs", "20240517-100405.json"),
		ResultsPath("ft-logs", "", 0, now))
	assert.Equal(t, "/tmp/run-003.json", ResultsPath("ft-logs", "/tmp/run-", 3, now))
}
