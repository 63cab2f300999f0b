package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/oncrpc/internal/logger"
	"github.com/marmos91/oncrpc/pkg/rpc/client"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call HOST PROGRAM VERSION",
	Short: "Call a procedure once and report the outcome",
	Long: `Connect to HOST, call one procedure (NULL by default) of PROGRAM
VERSION and print the round-trip time.

PROGRAM is a number or one of portmap, nfs, mount, nlm.

Examples:
  # Ping NFSv3 from a privileged port (needs root)
  sudo rpcping call nfs.example.com nfs 3

  # Ping MOUNT v3 on a non-standard port from any local port
  rpcping call 10.0.0.5 mount 3 --port 20048 --any-port

  # Look the port up with the portmapper first
  rpcping call nfs.example.com mount 3 --port 0 --any-port

  # Send AUTH_UNIX credentials
  ONCRPC_AUTH_FLAVOR=unix ONCRPC_AUTH_UID=1000 rpcping call nfs.example.com 100003 3`,
	Args: cobra.ExactArgs(3),
	RunE: runCall,
}

func init() {
	addConnectionFlags(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	tgt, err := parseTarget(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	opts, err := cfg.ClientOptions(nil)
	if err != nil {
		return err
	}

	if err := tgt.resolvePort(ctx, opts); err != nil {
		return explain(err)
	}

	conn, err := client.Dial(ctx, tgt.host, tgt.port, opts)
	if err != nil {
		return explain(err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("close failed", logger.Err(err))
		}
	}()

	start := time.Now()
	result, err := conn.Request(ctx, tgt.program, tgt.version, procedure, nil)
	rtt := time.Since(start)
	if err != nil {
		return explain(fmt.Errorf("%s procedure %d: %w", tgt, procedure, err))
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s procedure %d: ok in %s (local port %d, %d result bytes, %s)\n",
		tgt, procedure, rtt.Round(time.Microsecond), conn.LocalPort(), len(result), opts.Credential.Flavor())
	return nil
}
