package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/oncrpc/pkg/metrics"
	"github.com/marmos91/oncrpc/pkg/rpc"
)

// PortPolicy selects how the local source port is chosen.
type PortPolicy int

const (
	// PortPrivileged binds a random port in [PortLow, PortHigh] before
	// connecting. Servers exporting with "secure" (the NFS default) refuse
	// requests from ports >= 1024. Binding below 1024 normally requires root
	// or CAP_NET_BIND_SERVICE.
	PortPrivileged PortPolicy = iota

	// PortAny lets the kernel choose an ephemeral port.
	PortAny
)

func (p PortPolicy) String() string {
	switch p {
	case PortPrivileged:
		return "privileged"
	case PortAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParsePortPolicy maps a configuration name to a PortPolicy.
func ParsePortPolicy(s string) (PortPolicy, error) {
	switch strings.ToLower(s) {
	case "privileged", "secure", "reserved":
		return PortPrivileged, nil
	case "any", "ephemeral", "insecure":
		return PortAny, nil
	default:
		return 0, fmt.Errorf("unknown port policy %q", s)
	}
}

// Defaults applied by Options.withDefaults.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultBindAttempts = 16
	DefaultPortLow      = 500
	DefaultPortHigh     = 1023
)

// Options configures a connection.
type Options struct {
	// Timeout bounds every request from send to complete reply. It also
	// bounds the TCP connect. Zero means DefaultTimeout.
	Timeout time.Duration

	PortPolicy PortPolicy

	// BindAttempts caps how many random privileged ports are tried before
	// Dial fails with *PortBindError. Zero means DefaultBindAttempts.
	BindAttempts int

	// PortLow and PortHigh bound the privileged port range (inclusive).
	// Zero means [DefaultPortLow, DefaultPortHigh].
	PortLow  int
	PortHigh int

	// MaxRecordSize bounds a reassembled reply. Zero means
	// rpc.DefaultMaxRecordSize.
	MaxRecordSize int

	// Network is "tcp", "tcp4" or "tcp6". Empty means "tcp".
	Network string

	// Credential is sent with every request unless overridden per call.
	// Nil means AUTH_NONE.
	Credential rpc.Credential

	// Metrics receives call, traffic and connection metrics. Nil disables
	// collection.
	Metrics metrics.RPCMetrics
}

// DefaultOptions returns Options with every default filled in.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.BindAttempts <= 0 {
		o.BindAttempts = DefaultBindAttempts
	}
	if o.PortLow == 0 && o.PortHigh == 0 {
		o.PortLow, o.PortHigh = DefaultPortLow, DefaultPortHigh
	}
	if o.MaxRecordSize <= 0 {
		o.MaxRecordSize = rpc.DefaultMaxRecordSize
	}
	if o.Network == "" {
		o.Network = "tcp"
	}
	if o.Credential == nil {
		o.Credential = rpc.AuthNone{}
	}
	return o
}

// Validate checks option values that defaults cannot repair.
func (o Options) Validate() error {
	switch o.Network {
	case "", "tcp", "tcp4", "tcp6":
	default:
		return fmt.Errorf("unsupported network %q", o.Network)
	}
	if o.PortPolicy != PortPrivileged && o.PortPolicy != PortAny {
		return fmt.Errorf("unknown port policy %d", int(o.PortPolicy))
	}
	if o.PortLow != 0 || o.PortHigh != 0 {
		if o.PortLow < 1 || o.PortHigh > 65535 || o.PortLow > o.PortHigh {
			return fmt.Errorf("invalid port range [%d, %d]", o.PortLow, o.PortHigh)
		}
	}
	return nil
}

// CallOption overrides a per-request setting.
type CallOption func(*callOptions)

type callOptions struct {
	cred       rpc.Credential
	msgType    rpc.MsgType
	rpcVersion uint32
}

// WithCredential sends cred instead of the connection's credential.
func WithCredential(cred rpc.Credential) CallOption {
	return func(o *callOptions) { o.cred = cred }
}

// WithMessageType overrides the message type field. Only useful for
// exercising servers with malformed calls.
func WithMessageType(t rpc.MsgType) CallOption {
	return func(o *callOptions) { o.msgType = t }
}

// WithRPCVersion overrides the RPC protocol version field (normally 2).
func WithRPCVersion(v uint32) CallOption {
	return func(o *callOptions) { o.rpcVersion = v }
}
