package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tft-perf/traffic-flow-tests/config"
	"github.com/tft-perf/traffic-flow-tests/model"
)

func TestResolveKubeconfigsPrecedence(t *testing.T) {
	cfg := &model.Config{Kubeconfig: "/from/file", KubeconfigInfra: "/from/file-infra"}
	settings := &config.Settings{Kubeconfig: "/from/env", KubeconfigInfra: "/from/env-infra"}

	tenant, infra, err := resolveKubeconfigs("/from/flag", "/from/flag-infra", cfg, settings)
	assert.NoError(t, err)
	assert.Equal(t, "/from/flag", tenant)
	assert.Equal(t, "/from/flag-infra", infra)

	// The environment beats the configuration file.
	tenant, infra, err = resolveKubeconfigs("", "", cfg, settings)
	assert.NoError(t, err)
	assert.Equal(t, "/from/env", tenant)
	assert.Equal(t, "/from/env-infra", infra)

	tenant, infra, err = resolveKubeconfigs("", "", cfg, &config.Settings{})
	assert.NoError(t, err)
	assert.Equal(t, "/from/file", tenant)
	assert.Equal(t, "/from/file-infra", infra)
}

func TestResolveKubeconfigsInfraFlagAlone(t *testing.T) {
	_, _, err := resolveKubeconfigs("", "/from/flag-infra", &model.Config{}, &config.Settings{})
	assert.Error(t, err)
}
