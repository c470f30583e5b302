package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/canopy/internal/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long:  `List, inspect and remove session snapshots in the configured store (Redis or --dir).`,
}

func openStores() (*cli.Stores, error) {
	cfg, err := cli.LoadConfig(globalOpts)
	if err != nil {
		return nil, err
	}
	return cli.OpenStores(cfg, globalOpts.Dir)
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := openStores()
		if err != nil {
			return err
		}
		defer stores.Close()

		ids, err := stores.Store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No stored sessions found.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the snapshot of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		stores, err := openStores()
		if err != nil {
			return err
		}
		defer stores.Close()

		snap, err := stores.Store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load session '%s': %w", args[0], err)
		}
		out := cmd.OutOrStdout()
		if output == cli.OutputJSON {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintf(out, "path: %s\nsaved: %s\n", snap.Path, snap.SavedAt.Format("2006-01-02 15:04:05"))
		return cli.WriteTree(out, snap.Elements, output)
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return fmt.Errorf("requires at least one session id or --all")
		}
		stores, err := openStores()
		if err != nil {
			return err
		}
		defer stores.Close()

		ctx := cmd.Context()
		if all {
			args, err = stores.Store.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
		}

		var failed int
		for _, id := range args {
			if err := stores.Store.Delete(ctx, id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d session(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionInspectCmd.Flags().StringP("output", "o", cli.OutputTree, "Output format: tree, json, mermaid")
	sessionRmCmd.Flags().Bool("all", false, "Remove every stored session")
}
