package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <path> [then-path...]",
	Short: "Fetch the element tree for a path",
	Long: `Fetches the element tree the server renders for path and prints it.
Extra paths are navigated in order inside the same session, printing the
merged tree after each step, or only the changed slots with --diff.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		diffOnly, _ := cmd.Flags().GetBool("diff")
		query, _ := cmd.Flags().GetStringToString("param")

		var params any
		if len(query) > 0 {
			values := url.Values{}
			for k, v := range query {
				values.Set(k, v)
			}
			params = values
		}

		app, err := newApp(false)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		root := app.client.NewRoot(ctx, args[0], params)
		defer root.Close()

		tree, err := root.Elements().Wait(ctx)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", args[0], err)
		}
		if err := cli.WriteTree(cmd.OutOrStdout(), tree, output); err != nil {
			return err
		}

		for _, next := range args[1:] {
			merged, err := root.Refetch(ctx, next, nil).Wait(ctx)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", next, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n", next)
			if diffOnly {
				tui.NewAutoTreePrinter(cmd.OutOrStdout()).PrintDiff(domain.Diff(tree, merged))
			} else if err := cli.WriteTree(cmd.OutOrStdout(), merged, output); err != nil {
				return err
			}
			tree = merged
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringP("output", "o", cli.OutputTree, "Output format: tree, json, mermaid")
	fetchCmd.Flags().Bool("diff", false, "Print only changed slots after each navigation")
	fetchCmd.Flags().StringToStringP("param", "p", nil, "Query parameter for the first path (repeatable)")
}
