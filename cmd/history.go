package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/walletcase/internal/report"
	"github.com/KaramelBytes/walletcase/internal/utils"
)

var (
	histFormat string
	histLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved generation runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runStore()
		if err != nil {
			return err
		}
		runs, err := store.List()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintf(w, "No runs saved in %s\n", store.Dir())
			return nil
		}
		if histLimit > 0 && len(runs) > histLimit {
			runs = runs[:histLimit]
		}
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"ID", "Created", "Source", "Rows", "Use Cases", "Model"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.ShortID(),
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
				r.Source,
				r.Rows,
				len(r.UseCases),
				r.Model,
			})
		}
		t.Render()
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved run by id or unique id prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runStore()
		if err != nil {
			return err
		}
		run, err := store.Load(args[0])
		if err != nil {
			if errors.Is(err, report.ErrAmbiguousID) {
				return fmt.Errorf("%w: use more characters of the id", err)
			}
			return err
		}
		w := cmd.OutOrStdout()
		switch strings.ToLower(histFormat) {
		case "", "markdown", "md":
			fmt.Fprint(w, run.Markdown())
		case "json":
			b, err := utils.PrettyJSON(run)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(b))
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown|json)", histFormat)
		}
		return nil
	},
}

func runStore() (*report.Store, error) {
	if cfg == nil || cfg.RunsDir == "" {
		return nil, fmt.Errorf("runs directory not configured")
	}
	return report.NewStore(cfg.RunsDir), nil
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyListCmd.Flags().IntVarP(&histLimit, "limit", "n", 20, "show at most this many runs (0 for all)")
	historyShowCmd.Flags().StringVar(&histFormat, "format", "markdown", "output format: markdown|json")
}
