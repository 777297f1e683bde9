package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"

	"github.com/tft-perf/traffic-flow-tests/api"
	"github.com/tft-perf/traffic-flow-tests/config"
	"github.com/tft-perf/traffic-flow-tests/controller"
	"github.com/tft-perf/traffic-flow-tests/model"
	"github.com/tft-perf/traffic-flow-tests/scheduler"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(),
		"Usage: %s [flags] <config.yaml> [evaluator-config.yaml]\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	var (
		outputBase      string
		check           bool
		cleanup         bool
		kubeconfig      string
		kubeconfigInfra string
	)
	flag.StringVar(&outputBase, "o", "", "write result files as <output-base><NNN>.json instead of the suite logs directory")
	flag.StringVar(&outputBase, "output-base", "", "same as -o")
	flag.BoolVar(&check, "check", false, "exit non-zero when the run fails evaluation")
	flag.BoolVar(&cleanup, "cleanup", false, "remove workloads left behind by earlier runs of this configuration and exit")
	flag.StringVar(&kubeconfig, "kubeconfig", "", "kubeconfig of the cluster under test")
	flag.StringVar(&kubeconfigInfra, "kubeconfig-infra", "", "kubeconfig of the infra cluster on DPU setups")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		usage()
		os.Exit(2)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatal(err)
	}
	if err := config.SetupLogging(settings); err != nil {
		log.Fatal(err)
	}

	cfg, err := model.LoadConfig(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	var evaluator *controller.Evaluator
	if flag.NArg() == 2 {
		evaluator, err = controller.LoadEvalConfig(flag.Arg(1))
		if err != nil {
			log.Fatal(err)
		}
	}

	tenant, infra, err := resolveKubeconfigs(kubeconfig, kubeconfigInfra, cfg, settings)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("using kubeconfig %s", tenant)
	clients, err := config.NewClients(tenant)
	if err != nil {
		log.Fatal(err)
	}
	var infraClients *config.Clients
	if infra != "" {
		log.Infof("using infra kubeconfig %s", infra)
		if infraClients, err = config.NewClients(infra); err != nil {
			log.Fatal(err)
		}
	}

	manager := scheduler.NewK8sManager(clients, infraClients, settings)
	ctr := controller.NewController(manager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cleanup {
		if err := ctr.CleanupConfig(ctx, cfg); err != nil {
			log.Fatal(err)
		}
		return
	}
	go api.NewAPIServer(ctr).Serve(settings.ListenAddr)

	results, runErr := ctr.RunConfig(ctx, cfg)
	for i, result := range results {
		path, err := controller.WriteResults(result, cfg.Tests[i].Logs, outputBase, i)
		if err != nil {
			log.Errorf("cannot write results of suite %s: %s", result.SuiteName, err)
			continue
		}
		log.Infof("results of suite %s written to %s", result.SuiteName, path)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}

	if evaluator == nil {
		evaluator = new(controller.Evaluator)
	}
	verdict := evaluator.Evaluate(results)
	for _, failure := range verdict.Failures {
		log.Warn(failure)
	}
	if verdict.Passed {
		log.Info("all flows passed")
		return
	}
	if check {
		os.Exit(1)
	}
}

// resolveKubeconfigs picks the kubeconfig pair: command line first, then
// TFT_KUBECONFIG, then the configuration file, then the well-known file
// locations. The infra kubeconfig is only taken from the same source as
// the tenant one so the pair always matches; an infra flag without the
// tenant flag is an error rather than a silent fallthrough.
func resolveKubeconfigs(flagKubeconfig, flagInfra string, cfg *model.Config,
	settings *config.Settings) (string, string, error) {
	if flagKubeconfig != "" {
		return flagKubeconfig, flagInfra, nil
	}
	if flagInfra != "" {
		return "", "", fmt.Errorf("-kubeconfig-infra requires -kubeconfig")
	}
	if settings.Kubeconfig != "" {
		return settings.Kubeconfig, settings.KubeconfigInfra, nil
	}
	if cfg.Kubeconfig != "" {
		return cfg.Kubeconfig, cfg.KubeconfigInfra, nil
	}
	return config.DetectKubeconfigs()
}
