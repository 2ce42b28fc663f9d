package main

import (
	"crypto/x509"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	mdtls "github.com/wgsim/controller/internal/dtls"
	"github.com/wgsim/controller/internal/monitor"
	"github.com/wgsim/controller/pkg/tracer"
)

var (
	watchAddr string
	watchCA   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the node logs of a running controller",
	Long: `Connect to the monitor feed of a controller started with
monitor.enabled and print every node log entry as it happens. Without --ca the
feed certificate is not verified, which is what a self-signed feed needs.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchAddr, "addr", "a", "", "feed address host:port (default from monitor.host/port)")
	watchCmd.Flags().StringVar(&watchCA, "ca", "", "PEM bundle to verify the feed certificate")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	addr := watchAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Monitor.Addr()
	}

	var pool *x509.CertPool
	if watchCA != "" {
		var err error
		if pool, err = mdtls.LoadPool(watchCA); err != nil {
			return err
		}
	}
	dc, err := mdtls.ClientConfig(pool)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := monitor.Dial(ctx, addr, dc)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connected to %s\n", addr)
	return monitor.Watch(ctx, conn, func(r tracer.Record) {
		fmt.Fprintln(out, formatRecord(r))
	})
}

func formatRecord(r tracer.Record) string {
	return fmt.Sprintf("%s %-6s #%-3d [%s] %s", r.TS.Format("15:04:05.000"), r.Category, r.Node, r.Tag, r.Text)
}
