package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/storage/postgres"
)

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events [commitment_observed|agent_registered]",
	Short: "Show the most recent journaled chain events",
	Args:  cobra.MaximumNArgs(1),
	Run:   runEvents,
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "number of events to show")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) {
	var kind domain.EventKind
	if len(args) == 1 {
		kind = domain.EventKind(args[0])
		if kind != domain.EventKindCommitmentObserved && kind != domain.EventKindAgentRegistered {
			fmt.Printf("Unknown event kind: %s\n", args[0])
			os.Exit(1)
		}
	}

	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("No database configured, the in-memory journal is not persisted")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewEventRepo(db)
	events, err := repo.List(ctx, kind, eventsLimit)
	if err != nil {
		slog.Error("Failed to list events", "error", err)
		os.Exit(1)
	}
	total, err := repo.Count(ctx, kind)
	if err != nil {
		slog.Error("Failed to count events", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "OBSERVED\tKIND\tSUBJECT\tDETAIL")
	for _, ev := range events {
		switch ev.Kind {
		case domain.EventKindCommitmentObserved:
			leaf := "?"
			if ev.Commitment.HasLeafIndex() {
				leaf = fmt.Sprint(ev.Commitment.LeafIndex)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\tleaf %s\n",
				ev.Commitment.ObservedAt.Format(time.RFC3339), ev.Kind, ev.Commitment.CommitmentID, leaf)
		case domain.EventKindAgentRegistered:
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				ev.Registration.ObservedAt.Format(time.RFC3339), ev.Kind, ev.Registration.Address, ev.Registration.Name)
		}
	}
	_ = w.Flush()
	fmt.Printf("%d of %d events\n", len(events), total)
}
