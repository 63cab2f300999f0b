package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/oncrpc/internal/logger"
	"github.com/marmos91/oncrpc/internal/protocol/portmap"
	"github.com/marmos91/oncrpc/internal/telemetry"
	"github.com/marmos91/oncrpc/pkg/config"
	"github.com/marmos91/oncrpc/pkg/rpc"
	"github.com/marmos91/oncrpc/pkg/rpc/client"
	"github.com/spf13/cobra"
)

// Connection flags shared by call and probe.
var (
	targetPort int
	procedure  uint32
	timeout    time.Duration
	anyPort    bool
)

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&targetPort, "port", "p", 2049, "Server TCP port (0 asks the portmapper on port 111)")
	cmd.Flags().Uint32Var(&procedure, "proc", rpc.ProcNull, "Procedure number to call (0 is NULL)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Per-call timeout (default: client.timeout from config)")
	cmd.Flags().BoolVar(&anyPort, "any-port", false, "Connect from an ephemeral port instead of a privileged one")
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the configuration, applies command line overrides and
// initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		cfg.Client.Timeout = timeout
	}
	if anyPort {
		cfg.Client.PortPolicy = client.PortAny.String()
	}

	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// telemetryConfig converts the telemetry section for internal/telemetry.
func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "rpcping",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
		Profiling: telemetry.ProfilingConfig{
			Enabled:      cfg.Telemetry.Profiling.Enabled,
			Endpoint:     cfg.Telemetry.Profiling.Endpoint,
			ProfileTypes: cfg.Telemetry.Profiling.ProfileTypes,
		},
	}
}

// initTelemetry starts tracing and returns a function that flushes and
// stops it.
func initTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	shutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return func() {
		// ctx may already be cancelled by a signal
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}, nil
}

// programNames maps well known program names to numbers.
var programNames = map[string]uint32{
	"portmap":  rpc.ProgramPortmap,
	"rpcbind":  rpc.ProgramPortmap,
	"nfs":      rpc.ProgramNFS,
	"mount":    rpc.ProgramMount,
	"mountd":   rpc.ProgramMount,
	"nlm":      rpc.ProgramNLM,
	"nlockmgr": rpc.ProgramNLM,
}

// parseProgram accepts a program number or a well known name.
func parseProgram(s string) (uint32, error) {
	if prog, ok := programNames[strings.ToLower(s)]; ok {
		return prog, nil
	}
	prog, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid program %q: expected a number or one of portmap, nfs, mount, nlm", s)
	}
	return uint32(prog), nil
}

// parseVersion parses a program version number.
func parseVersion(s string) (uint32, error) {
	vers, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", s)
	}
	return uint32(vers), nil
}

// target holds the parsed HOST PROGRAM VERSION arguments and the port.
type target struct {
	host    string
	port    int
	program uint32
	version uint32
}

func parseTarget(args []string) (target, error) {
	prog, err := parseProgram(args[1])
	if err != nil {
		return target{}, err
	}
	vers, err := parseVersion(args[2])
	if err != nil {
		return target{}, err
	}
	if targetPort < 0 || targetPort > 65535 {
		return target{}, fmt.Errorf("invalid port %d", targetPort)
	}
	return target{host: args[0], port: targetPort, program: prog, version: vers}, nil
}

func (t target) String() string {
	return fmt.Sprintf("%s:%d program %d version %d", t.host, t.port, t.program, t.version)
}

// resolvePort fills in t.port from the portmapper when it is 0.
func (t *target) resolvePort(ctx context.Context, opts client.Options) error {
	if t.port != 0 {
		return nil
	}

	port, err := portmap.Resolve(ctx, t.host, t.program, t.version, opts)
	if err != nil {
		return fmt.Errorf("%s: port lookup: %w", t.host, err)
	}
	logger.Debug("resolved port via portmapper",
		logger.RemoteAddr(net.JoinHostPort(t.host, strconv.Itoa(port))),
		logger.Program(t.program), logger.Version(t.version))
	t.port = port
	return nil
}

// explain adds a hint to errors a user can act on.
func explain(err error) error {
	var (
		berr *client.PortBindError
		aerr *rpc.AuthError
	)
	switch {
	case errors.As(err, &berr):
		return fmt.Errorf("%w\nhint: binding ports below 1024 needs root or CAP_NET_BIND_SERVICE; retry with --any-port", err)
	case errors.As(err, &aerr) && aerr.Stat == rpc.AuthTooWeak:
		return fmt.Errorf("%w\nhint: the server wants AUTH_UNIX credentials; set auth.flavor=unix", err)
	default:
		return err
	}
}

// needsReconnect reports whether the connection that produced err is unusable.
func needsReconnect(err error) bool {
	var (
		nerr *client.NetworkError
		perr *rpc.ProtocolError
	)
	return errors.As(err, &nerr) || errors.As(err, &perr)
}
