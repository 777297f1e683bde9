package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tft-perf/traffic-flow-tests/model"
)

func TestParsePowerReading(t *testing.T) {
	output := `
    Instantaneous power reading:                   212 Watts
    Minimum during sampling period:                 98 Watts
    Maximum during sampling period:                310 Watts
    Average power reading over sample period:      205 Watts
`
	watts, err := parsePowerReading(output)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 212.0, watts)

	_, err = parsePowerReading("Unable to establish IPMI v2 / RMCP+ session")
	assert.Error(t, err)
}

func TestParseEthtoolStats(t *testing.T) {
	output := `NIC statistics:
     rx_packets: 1234567
     tx_packets: 7654321
     rx_bytes: 99999999
     rx_dropped: 0
     some_text_stat: n/a
`
	stats := parseEthtoolStats(output)
	assert.Equal(t, int64(1234567), stats["rx_packets"])
	assert.Equal(t, int64(7654321), stats["tx_packets"])
	assert.Equal(t, int64(0), stats["rx_dropped"])
	_, ok := stats["some_text_stat"]
	assert.False(t, ok)
}

func TestNewPluginRunner(t *testing.T) {
	for _, plugin := range []model.Plugin{
		model.PluginMeasureCPU,
		model.PluginMeasurePower,
		model.PluginValidateOffload,
	} {
		runner := newPluginRunner(plugin)
		if assert.NotNil(t, runner, "%s", plugin) {
			assert.Equal(t, plugin, runner.Name())
		}
	}
	assert.Nil(t, newPluginRunner(model.Plugin("bogus")))
}
