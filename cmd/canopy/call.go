package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/aretw0/canopy/internal/cli"
)

var callCmd = &cobra.Command{
	Use:   "call <file#name> [arg...]",
	Short: "Invoke a server function",
	Long: `Invokes a server function and prints its value. Arguments are parsed as JSON
when possible and sent as strings otherwise. With --query they are sent as a
GET query string instead (key=value pairs).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		asQuery, _ := cmd.Flags().GetBool("query")
		sessionID, _ := cmd.Flags().GetString("session")

		callArgs, err := parseCallArgs(args[1:], asQuery)
		if err != nil {
			return err
		}

		app, err := newApp(sessionID != "")
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		var value any
		if sessionID != "" {
			root, err := app.client.Open(ctx, sessionID, "/", nil)
			if err != nil {
				return err
			}
			value, err = root.CallRemote(ctx, args[0], callArgs...)
			if err != nil {
				return err
			}
			// The merge is asynchronous; wait for the persisted tree.
			if _, err := root.Elements().Wait(ctx); err != nil {
				return err
			}
		} else {
			value, err = app.client.Call(ctx, args[0], callArgs...)
			if err != nil {
				return err
			}
		}
		return cli.WriteValue(cmd.OutOrStdout(), value, output)
	},
}

func parseCallArgs(raw []string, asQuery bool) ([]any, error) {
	if asQuery {
		values := url.Values{}
		for _, kv := range raw {
			q, err := url.ParseQuery(kv)
			if err != nil {
				return nil, fmt.Errorf("invalid query argument %q: %w", kv, err)
			}
			for k, vs := range q {
				values[k] = append(values[k], vs...)
			}
		}
		return []any{values}, nil
	}

	args := make([]any, 0, len(raw))
	for _, s := range raw {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			v = s
		}
		args = append(args, v)
	}
	return args, nil
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().StringP("output", "o", "", "Output format: json or plain")
	callCmd.Flags().Bool("query", false, "Send arguments as a GET query string")
	callCmd.Flags().StringP("session", "s", "", "Merge returned slots into this persisted session")
}
