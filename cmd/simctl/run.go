package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wgsim/controller"
	"github.com/wgsim/controller/internal/config"
	"github.com/wgsim/controller/internal/monitor"
	"github.com/wgsim/controller/internal/sim"
	"github.com/wgsim/controller/internal/tui"
	"github.com/wgsim/controller/pkg/tracer"
)

var (
	runHeadless bool
	runTopology string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the controller",
	Long: `Start the controller on the topology named by engine.topology (or
--topology). Each Reset reloads the topology file and rebuilds the whole
pipeline. With --headless no UI is started; the process runs until it is
interrupted, which is useful together with the monitor feed.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run without the terminal UI")
	runCmd.Flags().StringVarP(&runTopology, "topology", "t", "", "topology file (overrides engine.topology)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runTopology != "" {
		cfg.Engine.Topology = runTopology
	}
	closer, err := setupLogging(cfg, !runHeadless)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, cfg, runHeadless)
}

// run wires the pipeline: engine source, supervisor, reconciler, monitor feed
// and UI. It returns once ctx is done or the UI quits.
func run(ctx context.Context, cfg *config.Config, headless bool) error {
	interval, err := cfg.ReconcileInterval()
	if err != nil {
		return err
	}
	joinTimeout, err := cfg.JoinTimeout()
	if err != nil {
		return err
	}

	var tr *tracer.Tracer
	if cfg.Monitor.Enabled {
		tr = tracer.NewTracer()
	}
	repainter := tui.NewRepainter()
	source := sim.FileSource(cfg.Engine.Topology, sim.Options{Seed: cfg.Engine.Seed, EventBuffer: cfg.Engine.EventBuffer})

	sup, err := controller.New(source, controller.Options{
		LogCapacity: cfg.Hub.LogCapacity,
		JoinTimeout: joinTimeout,
		Repainter:   repainter,
		Tracer:      tr,
	})
	if err != nil {
		return fmt.Errorf("start controller: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		if err := sup.Stop(context.Background()); err != nil {
			log.WithField("caller", "simctl").WithError(err).Error("Stopping controller")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sup.RunReconciler(ctx, interval)
	}()

	if cfg.Monitor.Enabled {
		feed, err := monitor.New(cfg.Monitor, tr.Records())
		if err != nil {
			return fmt.Errorf("monitor: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := feed.Run(ctx); err != nil {
				log.WithField("caller", "simctl").WithError(err).Error("Monitor feed")
			}
		}()
	}

	if headless {
		log.WithField("caller", "simctl").Infof("Controller running headless on %s", cfg.Engine.Topology)
		<-ctx.Done()
		return nil
	}
	return tui.New(ctx, sup, repainter).Run(ctx)
}
