package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/marionet/marionet/log"
)

type rootCommand struct {
	debuggerURL string
	verbose     bool
	logger      *log.Logger
}

func newRootCommand() *cobra.Command {
	root := &rootCommand{
		logger: log.New(logrus.New(), false, nil),
	}

	cmd := &cobra.Command{
		Use:           "marionet",
		Short:         "Drive a browser over the DevTools protocol",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if root.verbose {
				return root.logger.SetLevel("debug")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&root.debuggerURL, "remote-debugging-url",
		"http://localhost:9222", "base URL of the browser's remote debugging endpoint")
	cmd.PersistentFlags().BoolVarP(&root.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newTargetsCommand(root),
		newNavigateCommand(root),
		newRecordCommand(root),
	)
	return cmd
}

// listTargets fetches the debugger's target list as raw JSON.
func (r *rootCommand) listTargets() (gjson.Result, error) {
	client := http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(r.debuggerURL + "/json/list")
	if err != nil {
		return gjson.Result{}, fmt.Errorf("listing targets: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading target list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("listing targets: %s", resp.Status)
	}
	return gjson.ParseBytes(body), nil
}

// resolveTarget returns the WebSocket URL of the target with the
// given id, or of the first page target when id is empty.
func (r *rootCommand) resolveTarget(id string) (string, error) {
	targets, err := r.listTargets()
	if err != nil {
		return "", err
	}

	var wsURL string
	targets.ForEach(func(_, target gjson.Result) bool {
		if id != "" && target.Get("id").String() != id {
			return true
		}
		if id == "" && target.Get("type").String() != "page" {
			return true
		}
		wsURL = target.Get("webSocketDebuggerUrl").String()
		return false
	})
	if wsURL == "" {
		if id != "" {
			return "", fmt.Errorf("no target with id %q", id)
		}
		return "", fmt.Errorf("no page target found at %s", r.debuggerURL)
	}
	return wsURL, nil
}
