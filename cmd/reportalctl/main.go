// Package main is the administrative CLI for the reporting portal. It works
// directly against the configured document stores.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/app"
	"github.com/pitabwire/reportal/internal/config"
	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/report"
	"github.com/pitabwire/reportal/model"
)

func main() {
	if err := newRootCmd(openFromConfig).Execute(); err != nil {
		os.Exit(1)
	}
}

// opener builds the services for one command invocation.
type opener func(ctx context.Context, configPath string) (*app.App, *zap.Logger, error)

func openFromConfig(ctx context.Context, configPath string) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	// Command output owns stdout.
	obs := cfg.Observability
	if obs.LogOutput == "" || obs.LogOutput == "stdout" {
		obs.LogOutput = "stderr"
	}
	logger, err := observability.NewLogger(obs)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func newRootCmd(open opener) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "reportalctl",
		Short:        "Administer the reporting portal's categories, forms and locations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")

	// withApp opens the services, runs fn and releases them.
	withApp := func(fn func(cmd *cobra.Command, a *app.App, logger *zap.Logger, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, logger, err := open(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd, a, logger, args)
		}
	}

	root.AddCommand(
		newImportLocationsCmd(withApp),
		newSeedCmd(withApp),
		newTreeCmd(withApp),
		newShowFormCmd(withApp),
		newClassifyCmd(withApp),
		newReportCmd(withApp),
	)
	return root
}

type appRunner func(fn func(cmd *cobra.Command, a *app.App, logger *zap.Logger, args []string) error) func(*cobra.Command, []string) error

func newImportLocationsCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "import-locations <file>",
		Short: "Replace the location table with an .xlsx, .xls or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ *zap.Logger, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := location.ReadSpreadsheet(f, args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			n, err := location.Import(cmd.Context(), a.Stores.Primary, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d locations\n", n)
			return nil
		}),
	}
}

func newSeedCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <dir>...",
		Short: "Apply category and form seed files",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, logger *zap.Logger, args []string) error {
			res, err := a.Seed(cmd.Context(), args, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "categories: %d created, %d skipped\nforms: %d saved, %d skipped\n",
				res.CategoriesCreated, res.CategoriesSkipped, res.FormsSaved, res.FormsSkipped)
			return nil
		}),
	}
}

func newTreeCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the category tree",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ *zap.Logger, _ []string) error {
			tree, err := a.Categories.Tree(cmd.Context())
			if err != nil {
				return err
			}
			for _, root := range tree.Nested() {
				printNode(cmd.OutOrStdout(), root, 0)
			}
			return nil
		}),
	}
}

func printNode(w io.Writer, n *model.CategoryTreeNode, depth int) {
	marker := ""
	if n.Leaf && depth > 0 {
		marker = " *"
	}
	fmt.Fprintf(w, "%s%s (%s)%s\n", strings.Repeat("  ", depth), n.Title, n.ID, marker)
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}

func newShowFormCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "show-form <categoryId>",
		Short: "Print a category's form configuration as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ *zap.Logger, args []string) error {
			cfg, err := a.Configs.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		}),
	}
}

func newClassifyCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "List offices and whether they carry the designated suffix",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ *zap.Logger, _ []string) error {
			designated, err := a.Classifier.GetOrCompute(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(designated))
			for name := range designated {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				mark := " "
				if designated[name] {
					mark = "D"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, name)
			}
			return nil
		}),
	}
}

func newReportCmd(withApp appRunner) *cobra.Command {
	var from, to string
	var regions, divisions, offices []string

	cmd := &cobra.Command{
		Use:   "report <categoryId>",
		Short: "Summarize a category's submissions per office",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ *zap.Logger, args []string) error {
			req := report.Request{
				CategoryID: args[0],
				Selection:  location.Selection{Regions: regions, Divisions: divisions, Offices: offices},
			}
			var err error
			if from != "" {
				if req.From, err = time.Parse(time.DateOnly, from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if to != "" {
				if req.To, err = time.Parse(time.DateOnly, to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				req.To = req.To.AddDate(0, 0, 1)
			}

			sum, err := a.Reports.Summarize(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", sum.Title, sum.Frequency.Label())
			for _, o := range sum.Offices {
				fmt.Fprintf(out, "  %-30s %5d\n", o.Office, o.Submissions)
			}
			fmt.Fprintf(out, "total %d, missing %d, unscoped %d\n", sum.Total, len(sum.Missing), sum.Unscoped)
			return nil
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&regions, "region", nil, "restrict to regions")
	cmd.Flags().StringSliceVar(&divisions, "division", nil, "restrict to divisions")
	cmd.Flags().StringSliceVar(&offices, "office", nil, "restrict to offices")
	return cmd
}
