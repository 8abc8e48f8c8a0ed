package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vietddude/zkagent/internal/control"
)

var approve bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List or invoke the chain tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available chain tools",
	Run:   runToolsList,
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool> [json-input]",
	Short: "Invoke a chain tool once and print its result",
	Args:  cobra.RangeArgs(1, 2),
	Run:   runToolsCall,
}

func init() {
	toolsCallCmd.Flags().BoolVar(&approve, "approve", false, "approve tools that submit transactions")
	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}

func newOneShotCoordinator() *control.Coordinator {
	cfg := loadConfig()
	ccfg := control.ConfigFromApp(cfg)
	ccfg.Port = 0
	ccfg.GRPCPort = 0

	app, err := control.NewCoordinator(ccfg, control.WithoutEventStream())
	if err != nil {
		slog.Error("Failed to initialize coordinator", "error", err)
		os.Exit(1)
	}
	return app
}

func runToolsList(cmd *cobra.Command, args []string) {
	app := newOneShotCoordinator()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "TOOL\tAPPROVAL\tDESCRIPTION")
	for _, def := range app.Tools().Definitions() {
		approval := "-"
		if def.RequiresApproval {
			approval = color.YellowString("required")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", color.CyanString(def.Name), approval, def.Description)
	}
	_ = w.Flush()
}

func runToolsCall(cmd *cobra.Command, args []string) {
	name := args[0]
	var input json.RawMessage
	if len(args) > 1 {
		input = json.RawMessage(args[1])
		if !json.Valid(input) {
			fmt.Fprintf(os.Stderr, "%s input is not valid JSON\n", color.RedString("Error:"))
			os.Exit(1)
		}
	}

	app := newOneShotCoordinator()
	tool, ok := app.Tools().Get(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s unknown tool %s\n", color.RedString("Error:"), color.CyanString(name))
		os.Exit(1)
	}
	if tool.Definition.RequiresApproval && !approve {
		fmt.Fprintf(os.Stderr, "%s %s submits a transaction, rerun with --approve\n",
			color.YellowString("Approval required:"), color.CyanString(name))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start coordinator", "error", err)
		os.Exit(1)
	}
	res := app.Tools().Invoke(ctx, name, input)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Error during shutdown", "error", err)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		slog.Error("Failed to encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	if !res.OK {
		os.Exit(1)
	}
}
