package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/spf13/cobra"

	"github.com/marionet/marionet/common"
)

func newRecordCommand(root *rootCommand) *cobra.Command {
	var (
		targetID string
		duration time.Duration
		outDir   string
		format   string
		quality  int64
	)

	cmd := &cobra.Command{
		Use:   "record [url]",
		Short: "Record screencast frames from a page target",
		Long: `Record captures the page's screencast stream for the given duration
and writes each frame to the output directory. When a URL is given the
page navigates there first.`,
		Args: cobra.MaximumNArgs(1),
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

			if len(args) == 1 {
				if err := page.Goto(args[0], common.GotoOptions{}); err != nil {
					return err
				}
			}

			sc := page.Screencast()
			if err := sc.Start(common.ScreencastOptions{
				Format:  cdppage.ScreencastFormat(format),
				Quality: quality,
			}); err != nil {
				return err
			}

			select {
			case <-time.After(duration):
			case <-conn.Context().Done():
				return context.Cause(conn.Context())
			}

			frames, err := sc.Stop()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			for i, frame := range frames {
				name := filepath.Join(outDir, fmt.Sprintf("frame-%04d.%s", i, format))
				if err := os.WriteFile(name, frame.Data, 0o644); err != nil {
					return fmt.Errorf("writing frame: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", len(frames), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetID, "target", "", "target id (defaults to the first page target)")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to record")
	cmd.Flags().StringVarP(&outDir, "out", "o", "frames", "output directory")
	cmd.Flags().StringVar(&format, "format", "jpeg", `frame format: "jpeg" or "png"`)
	cmd.Flags().Int64Var(&quality, "quality", 0, "jpeg quality 1-100 (0 uses the default)")
	return cmd
}
