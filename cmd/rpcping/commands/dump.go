package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/marmos91/oncrpc/internal/protocol/portmap"
	"github.com/marmos91/oncrpc/pkg/rpc/client"
	"github.com/spf13/cobra"
)

var (
	dumpPort    int
	dumpAnyPort bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump HOST",
	Short: "List the programs registered with a portmapper",
	Long: `Ask the portmapper (rpcbind) on HOST for every registered
program, version and port, like rpcinfo -p.

Examples:
  rpcping dump nfs.example.com --any-port`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().IntVarP(&dumpPort, "port", "p", portmap.Port, "Portmapper TCP port")
	dumpCmd.Flags().BoolVar(&dumpAnyPort, "any-port", false, "Connect from an ephemeral port instead of a privileged one")
}

func runDump(cmd *cobra.Command, args []string) error {
	anyPort = dumpAnyPort
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.ClientOptions(nil)
	if err != nil {
		return err
	}

	conn, err := client.Dial(ctx, args[0], dumpPort, opts)
	if err != nil {
		return explain(err)
	}
	defer func() { _ = conn.Close() }()

	mappings, err := portmap.Dump(ctx, conn)
	if err != nil {
		return explain(err)
	}

	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].Prog != mappings[j].Prog {
			return mappings[i].Prog < mappings[j].Prog
		}
		return mappings[i].Vers < mappings[j].Vers
	})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROGRAM\tVERS\tPROTO\tPORT\tSERVICE")
	for _, m := range mappings {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%s\n", m.Prog, m.Vers, protoName(m.Prot), m.Port, programName(m.Prog))
	}
	return w.Flush()
}

func protoName(prot uint32) string {
	switch prot {
	case portmap.ProtoTCP:
		return "tcp"
	case portmap.ProtoUDP:
		return "udp"
	default:
		return fmt.Sprintf("%d", prot)
	}
}

// programName returns the canonical name for a well known program.
func programName(prog uint32) string {
	best := ""
	for name, p := range programNames {
		// shortest alias is the canonical one: nfs, nlm, mount, portmap
		if p == prog && (best == "" || len(name) < len(best) || (len(name) == len(best) && name < best)) {
			best = name
		}
	}
	if best == "" {
		return "-"
	}
	return best
}
