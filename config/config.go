package config

import (
	"fmt"
	"os"
	"path"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Default kubeconfig locations probed when neither the command line nor
// the configuration file names one. The tenant/infra pair belongs to DPU
// clusters where the traffic endpoints and the NIC-side infra run under
// separate API servers.
const (
	KubeconfigSingle = "/root/kubeconfig.nicmodecluster"
	KubeconfigCX     = "/root/kubeconfig.smartniccluster"
	KubeconfigTenant = "/root/kubeconfig.tenantcluster"
	KubeconfigInfra  = "/root/kubeconfig.infracluster"
)

// Settings are the process-level knobs taken from the environment. They
// deliberately do not overlap with the test configuration file: anything
// that describes a test lives in YAML, anything that describes where this
// process runs lives here.
type Settings struct {
	Kubeconfig      string `split_words:"true"`
	KubeconfigInfra string `split_words:"true"`
	TestImage       string `split_words:"true" default:"ghcr.io/tft-perf/traffic-flow-tools:latest"`
	ExternalServer  string `split_words:"true" default:"tft-external-server"`
	ListenAddr      string `split_words:"true" default:":8181"`
	LogJSON         bool   `envconfig:"LOG_JSON"`
	LogPath         string `split_words:"true"`
	Verbosity       string `split_words:"true" default:"info"`
}

// LoadSettings reads TFT_* environment variables.
func LoadSettings() (*Settings, error) {
	s := new(Settings)
	if err := envconfig.Process("tft", s); err != nil {
		return nil, fmt.Errorf("cannot process environment: %w", err)
	}
	return s, nil
}

// SetupLogging configures the process-wide logger from the settings.
func SetupLogging(s *Settings) error {
	level, err := log.ParseLevel(s.Verbosity)
	if err != nil {
		return fmt.Errorf("invalid verbosity %q: %w", s.Verbosity, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	if !s.LogJSON {
		return nil
	}
	log.SetFormatter(&log.JSONFormatter{})
	if s.LogPath == "" {
		return nil
	}
	if err := os.MkdirAll(s.LogPath, os.ModePerm); err != nil {
		return err
	}
	file, err := os.OpenFile(path.Join(s.LogPath, "tft.json"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to log to file: %w", err)
	}
	log.SetOutput(file)
	return nil
}

// DetectKubeconfigs finds the kubeconfig pair from the well-known file
// locations. It is the fallback of last resort after the command line and
// the configuration file.
func DetectKubeconfigs() (kubeconfig, kubeconfigInfra string, err error) {
	exists := func(p string) bool {
		_, statErr := os.Stat(p)
		return statErr == nil
	}
	switch {
	case exists(KubeconfigSingle):
		return KubeconfigSingle, "", nil
	case exists(KubeconfigCX):
		return KubeconfigCX, "", nil
	case exists(KubeconfigTenant):
		if !exists(KubeconfigInfra) {
			return "", "", fmt.Errorf("found %s but the matching infra kubeconfig %s is missing",
				KubeconfigTenant, KubeconfigInfra)
		}
		return KubeconfigTenant, KubeconfigInfra, nil
	}
	return "", "", fmt.Errorf("no kubeconfig given and none of the default locations exist")
}
