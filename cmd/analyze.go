package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/walletcase/internal/analysis"
	"github.com/KaramelBytes/walletcase/internal/dataset"
	"github.com/KaramelBytes/walletcase/internal/utils"
)

var (
	anaFormat     string
	anaOutputPath string
	anaProfiles   bool
	anaQuiet      bool
)

// analysis of one input file
type analyzed struct {
	Path   string           `json:"file"`
	Rows   int              `json:"rows"`
	Header []string         `json:"columns"`
	Result *analysis.Result `json:"analysis"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <files...>",
	Short: "Profile wallet transaction CSVs and detect patterns without calling a model",
	Long: `Analyze one or more CSV files (glob patterns allowed). Prints column
profiles, role aggregates and insights. No AI provider is contacted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		switch anaFormat {
		case "table", "json", "text":
		default:
			return fmt.Errorf("unsupported --format: %s (use table|json|text)", anaFormat)
		}

		results, err := analyzeFiles(files)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		var sink strings.Builder
		out := io.Writer(w)
		if anaOutputPath != "" {
			out = &sink
		}
		if err := renderAnalyses(out, results, anaFormat); err != nil {
			return err
		}
		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, []byte(sink.String())); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			if !anaQuiet {
				fmt.Fprintf(w, "💾 Saved analysis of %d file(s) to %s\n", len(results), anaOutputPath)
			}
		}
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist, and dedupes.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// analyzeFiles parses and analyzes files concurrently, keeping input order.
func analyzeFiles(files []string) ([]analyzed, error) {
	results := make([]analyzed, len(files))
	var eg errgroup.Group
	eg.SetLimit(4)
	for i, path := range files {
		eg.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			ds, err := dataset.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			logger.Debug("analyzing", "file", path, "rows", ds.Len())
			results[i] = analyzed{Path: path, Rows: ds.Len(), Header: ds.Header, Result: analysis.Analyze(ds)}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func renderAnalyses(w io.Writer, results []analyzed, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if len(results) > 1 {
			fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(results), filepath.Base(r.Path))
		}
		if format == "text" {
			fmt.Fprintln(w, r.Result.Summary)
			if len(r.Result.Patterns.Insights) > 0 {
				fmt.Fprintln(w, "\nKey insights:")
				for _, in := range r.Result.Patterns.Insights {
					fmt.Fprintf(w, "- %s\n", in)
				}
			}
			continue
		}
		renderAnalysisTables(w, r)
	}
	return nil
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func renderAnalysisTables(w io.Writer, r analyzed) {
	fmt.Fprintf(w, "%s: %d rows, %d columns\n", filepath.Base(r.Path), r.Rows, len(r.Header))
	res := r.Result

	if anaProfiles && len(res.Profiles) > 0 {
		t := newTable(w, "Columns")
		t.AppendHeader(table.Row{"Column", "Unique", "Avg", "Min", "Max", "Top Values"})
		for _, p := range res.Profiles {
			row := table.Row{p.Name, p.UniqueCount, "", "", "", joinCounts(p.TopValues)}
			if p.Numeric != nil {
				row[2] = fmt.Sprintf("%.2f", p.Numeric.Average)
				row[3] = fmt.Sprintf("%.2f", p.Numeric.Min)
				row[4] = fmt.Sprintf("%.2f", p.Numeric.Max)
			}
			t.AppendRow(row)
		}
		t.Render()
	}

	rep := res.Patterns
	t := newTable(w, "Patterns")
	t.AppendHeader(table.Row{"Area", "Column", "Metric", "Value"})
	if tp := rep.Transaction; tp != nil {
		t.AppendRow(table.Row{"Transactions", tp.Column, "count", tp.TotalTransactions})
		t.AppendRow(table.Row{"", "", "total volume", fmt.Sprintf("%.2f", tp.TotalVolume)})
		t.AppendRow(table.Row{"", "", "average / median", fmt.Sprintf("%.2f / %.2f", tp.AverageAmount, tp.MedianAmount)})
		t.AppendRow(table.Row{"", "", "min / max", fmt.Sprintf("%.2f / %.2f", tp.MinAmount, tp.MaxAmount)})
		t.AppendRow(table.Row{"", "", "high value (> " + fmt.Sprintf("%.2f", tp.HighValueThreshold) + ")", fmt.Sprintf("%d (%.1f%%)", tp.HighValueCount, tp.HighValuePercentage)})
		t.AppendSeparator()
	}
	if mp := rep.Merchant; mp != nil {
		t.AppendRow(table.Row{"Merchants", mp.Column, "unique", mp.UniqueMerchants})
		t.AppendRow(table.Row{"", "", "top-1 share", fmt.Sprintf("%.1f%%", mp.MerchantConcentration)})
		t.AppendRow(table.Row{"", "", "top", joinCounts(mp.TopMerchants)})
		t.AppendSeparator()
	}
	if cp := rep.Category; cp != nil {
		t.AppendRow(table.Row{"Categories", cp.Column, "unique", cp.UniqueCategories})
		t.AppendRow(table.Row{"", "", "top", joinCounts(cp.TopCategories)})
		t.AppendSeparator()
	}
	if gp := rep.Geographic; gp != nil {
		t.AppendRow(table.Row{"Locations", gp.Column, "unique", gp.UniqueLocations})
		t.AppendRow(table.Row{"", "", "top-1 share", fmt.Sprintf("%.1f%%", gp.GeographicConcentration)})
		t.AppendRow(table.Row{"", "", "top", joinCounts(gp.TopLocations)})
		t.AppendSeparator()
	}
	if up := rep.User; up != nil {
		t.AppendRow(table.Row{"Users", up.Column, "unique", up.UniqueUsers})
		t.AppendRow(table.Row{"", "", "avg tx per user", fmt.Sprintf("%.2f", up.AverageTransactionsPerUser)})
		t.AppendRow(table.Row{"", "", "top", joinCounts(up.TopUsers)})
	}
	if t.Length() > 0 {
		t.Render()
	} else {
		fmt.Fprintln(w, "No wallet roles (amount, merchant, category, location, user) detected.")
	}

	if len(rep.Insights) > 0 {
		fmt.Fprintln(w, "Key insights:")
		for _, in := range rep.Insights {
			fmt.Fprintf(w, "- %s\n", in)
		}
	}
}

func joinCounts(vc []analysis.ValueCount) string {
	parts := make([]string, 0, len(vc))
	for _, v := range vc {
		parts = append(parts, fmt.Sprintf("%s (%d)", v.Value, v.Count))
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "table", "output format: table|json|text")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "write the analysis to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&anaProfiles, "profiles", true, "include per-column profiles in table output")
	analyzeCmd.Flags().BoolVarP(&anaQuiet, "quiet", "q", false, "suppress progress messages")
}
