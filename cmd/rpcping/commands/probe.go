package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/marmos91/oncrpc/internal/logger"
	"github.com/marmos91/oncrpc/internal/telemetry"
	"github.com/marmos91/oncrpc/pkg/config"
	"github.com/marmos91/oncrpc/pkg/metrics"
	rpcprom "github.com/marmos91/oncrpc/pkg/metrics/prometheus"
	"github.com/marmos91/oncrpc/pkg/rpc/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	probeInterval time.Duration
	probeCount    int
)

var probeCmd = &cobra.Command{
	Use:   "probe HOST PROGRAM VERSION",
	Short: "Call a procedure periodically and report statistics",
	Long: `Call a procedure of PROGRAM VERSION on HOST every --interval until
--count calls were made or the command is interrupted. The connection is
reused across calls and re-established after network or protocol errors.

With metrics.enabled the probe serves Prometheus metrics on metrics.listen,
and with telemetry.profiling.enabled it streams profiles to Pyroscope.

Examples:
  # Ping NFSv3 every second until interrupted
  sudo rpcping probe nfs.example.com nfs 3

  # Ten calls, half a second apart, exposing metrics
  ONCRPC_METRICS_ENABLED=true rpcping probe 10.0.0.5 nfs 3 --count 10 --interval 500ms --any-port`,
	Args: cobra.ExactArgs(3),
	RunE: runProbe,
}

func init() {
	addConnectionFlags(probeCmd)
	probeCmd.Flags().DurationVarP(&probeInterval, "interval", "i", time.Second, "Delay between calls")
	probeCmd.Flags().IntVarP(&probeCount, "count", "c", 0, "Number of calls (0 runs until interrupted)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	tgt, err := parseTarget(args)
	if err != nil {
		return err
	}
	if probeInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
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

	stopProfiling, err := telemetry.InitProfiling(telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := stopProfiling(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	rpcMetrics, err := startMetrics(ctx, cfg)
	if err != nil {
		return err
	}

	opts, err := cfg.ClientOptions(rpcMetrics)
	if err != nil {
		return err
	}

	if err := tgt.resolvePort(ctx, opts); err != nil {
		return explain(err)
	}

	mgr := client.NewManager(opts)
	defer mgr.CloseAll()

	stats := runProbeLoop(ctx, cmd.OutOrStdout(), mgr, tgt)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), stats)

	if stats.ok == 0 && stats.sent > 0 {
		return fmt.Errorf("%s: no successful replies", tgt)
	}
	return nil
}

// startMetrics serves Prometheus metrics when enabled. A nil RPCMetrics
// disables collection in the client.
func startMetrics(ctx context.Context, cfg *config.Config) (metrics.RPCMetrics, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := rpcprom.NewRPCMetrics(reg)

	srv, err := metrics.NewServer(cfg.Metrics.Listen, reg)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("metrics server error", logger.Err(err))
		}
	}()

	return m, nil
}

// runProbeLoop performs the calls and prints one line per call.
func runProbeLoop(ctx context.Context, out io.Writer, mgr *client.Manager, tgt target) *probeStats {
	stats := &probeStats{target: tgt}
	log := logger.With(logger.RemoteAddr(net.JoinHostPort(tgt.host, strconv.Itoa(tgt.port))))
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	var conn *client.Conn
	for seq := 1; probeCount == 0 || seq <= probeCount; seq++ {
		if seq > 1 {
			select {
			case <-ctx.Done():
				return stats
			case <-ticker.C:
			}
		}

		if conn == nil {
			c, err := mgr.Dial(ctx, tgt.host, tgt.port)
			if err != nil {
				stats.fail()
				_, _ = fmt.Fprintf(out, "seq=%d connect failed: %v\n", seq, explain(err))
				continue
			}
			conn = c
		}

		start := time.Now()
		_, err := conn.Request(ctx, tgt.program, tgt.version, procedure, nil)
		rtt := time.Since(start)

		if err != nil {
			stats.fail()
			_, _ = fmt.Fprintf(out, "seq=%d error: %v\n", seq, err)
			if needsReconnect(err) {
				log.Debug("dropping connection", logger.ConnID(conn.ID()), "seq", seq, logger.Err(err))
				_ = conn.Close()
				conn = nil
			}
			if ctx.Err() != nil {
				return stats
			}
			continue
		}

		stats.success(rtt)
		_, _ = fmt.Fprintf(out, "seq=%d ok time=%s port=%d\n", seq, rtt.Round(time.Microsecond), conn.LocalPort())
	}

	return stats
}

// probeStats accumulates round-trip statistics.
type probeStats struct {
	target target

	sent  int
	ok    int
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func (s *probeStats) fail() {
	s.sent++
}

func (s *probeStats) success(rtt time.Duration) {
	s.sent++
	s.ok++
	s.total += rtt
	if s.ok == 1 || rtt < s.min {
		s.min = rtt
	}
	if rtt > s.max {
		s.max = rtt
	}
}

func (s *probeStats) String() string {
	loss := 0.0
	if s.sent > 0 {
		loss = 100 * float64(s.sent-s.ok) / float64(s.sent)
	}
	line := fmt.Sprintf("--- %s ---\n%d calls, %d ok, %.1f%% failed", s.target, s.sent, s.ok, loss)
	if s.ok > 0 {
		avg := s.total / time.Duration(s.ok)
		line += fmt.Sprintf("\nrtt min/avg/max = %s/%s/%s",
			s.min.Round(time.Microsecond), avg.Round(time.Microsecond), s.max.Round(time.Microsecond))
	}
	return line
}
