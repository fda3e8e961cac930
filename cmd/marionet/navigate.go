package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marionet/marionet/common"
)

func newNavigateCommand(root *rootCommand) *cobra.Command {
	var (
		targetID  string
		waitUntil string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "navigate <url>",
		Short: "Navigate a page target and wait for it to load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL, err := root.resolveTarget(targetID)
			if err != nil {
				return err
			}

			ctx := context.Background()
			conn, err := common.NewConnection(ctx, wsURL, root.logger)
			if err != nil {
				return fmt.Errorf("connecting to target: %w", err)
			}
			defer conn.Close()

			page, err := common.NewPage(conn, root.logger, nil)
			if err != nil {
				return err
			}

			until := common.LifecycleEventLoad
			if waitUntil == "domcontentloaded" {
				until = common.LifecycleEventDOMContentLoad
			}
			if err := page.Goto(args[0], common.GotoOptions{
				Timeout:   timeout,
				WaitUntil: until,
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "loaded %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&targetID, "target", "", "target id (defaults to the first page target)")
	cmd.Flags().StringVar(&waitUntil, "wait-until", "load", `lifecycle event to wait for: "load" or "domcontentloaded"`)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "navigation timeout (0 uses the default)")
	return cmd
}
