package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vietddude/zkagent/internal/health"
	"github.com/vietddude/zkagent/internal/infra/chain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the configured node and show its status",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	heartbeat := health.NewProber(cfg.Heartbeat.Timeout).Probe(ctx, cfg.Chain.StatusURL())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "NODE\t%s\n", cfg.Chain.StatusURL())
	if heartbeat.Alive {
		_, _ = fmt.Fprintf(w, "ALIVE\t%s\n", color.GreenString("yes"))
	} else {
		_, _ = fmt.Fprintf(w, "ALIVE\t%s (%s)\n", color.RedString("no"), heartbeat.Error)
	}
	if heartbeat.Height != nil {
		_, _ = fmt.Fprintf(w, "HEIGHT\t%d\n", *heartbeat.Height)
	}

	client := chain.NewRESTClient(cfg.Chain.RPCURL, cfg.Chain.RESTURL, cfg.Heartbeat.Timeout)
	defer func() {
		_ = client.Close()
	}()

	if status, err := client.GetStatus(ctx); err == nil {
		_, _ = fmt.Fprintf(w, "NETWORK\t%s\n", status.Network)
		_, _ = fmt.Fprintf(w, "CATCHING UP\t%t\n", status.CatchingUp)
	}
	if root, err := client.GetMerkleRoot(ctx); err == nil {
		_, _ = fmt.Fprintf(w, "MERKLE ROOT\t%s (%d leaves)\n", root.Root, root.LeafCount)
	} else {
		_, _ = fmt.Fprintf(w, "MERKLE ROOT\t%s\n", color.YellowString("unavailable"))
	}
	_ = w.Flush()

	if !heartbeat.Alive {
		os.Exit(1)
	}
}
