package controller

import (
	"strconv"
	"time"

	"github.com/tft-perf/traffic-flow-tests/config"
	"github.com/tft-perf/traffic-flow-tests/model"
)

func recordFlowMetrics(output *model.FlowTestOutput, elapsed time.Duration) {
	meta := output.Metadata
	suite := meta.SuiteName
	testCase := meta.TestCase.String()
	testType := string(meta.TestType)
	reverse := strconv.FormatBool(meta.Reverse)

	status := "success"
	if !output.Success {
		status = "failure"
	}
	config.FlowStatusCounter.WithLabelValues(suite, testCase, testType, status).Inc()
	config.RunDurationSummary.WithLabelValues(suite, testType).Observe(elapsed.Seconds())

	if output.BitrateGbps.Tx != nil {
		config.BitrateTxGauge.WithLabelValues(suite, testCase, testType, reverse).Set(*output.BitrateGbps.Tx)
	}
	if output.BitrateGbps.Rx != nil {
		config.BitrateRxGauge.WithLabelValues(suite, testCase, testType, reverse).Set(*output.BitrateGbps.Rx)
	}
}
