package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func newTargetsCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the browser's debuggable targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := root.listTargets()
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			targets.ForEach(func(_, target gjson.Result) bool {
				bold.Fprintf(cmd.OutOrStdout(), "%s  %s\n",
					target.Get("id").String(), target.Get("type").String())
				fmt.Fprintf(cmd.OutOrStdout(), "  title: %s\n", target.Get("title").String())
				fmt.Fprintf(cmd.OutOrStdout(), "  url:   %s\n", target.Get("url").String())
				fmt.Fprintf(cmd.OutOrStdout(), "  ws:    %s\n", target.Get("webSocketDebuggerUrl").String())
				return true
			})
			return nil
		},
	}
}
