package main

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/campusd/internal/console"
)

var (
	chatUserID   string
	pollInterval time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running campusd",
	Long: `Open an interactive chat console against the campusd server. The header
shows whether the server has an index loaded.

Examples:
  campusctl chat
  campusctl chat --server http://campus.example.edu:9090 --user 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := console.NewClient(serverURL, 30*time.Second)
		p := tea.NewProgram(console.NewModel(client, chatUserID, pollInterval), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check campusd server health",
	Long: `Check the health status of the campusd HTTP server.

Examples:
  # Check health
  campusctl health

  # Check health on a different server
  campusctl health --server http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		return runHealth(ctx, console.NewClient(serverURL, 5*time.Second), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatUserID, "user", "", "user id sent with each message")
	chatCmd.Flags().DurationVar(&pollInterval, "interval", 10*time.Second, "health refresh interval")
}

func runHealth(ctx context.Context, client *console.Client, out io.Writer) error {
	resp, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", client.BaseURL(), err)
	}
	fmt.Fprintf(out, "Server Status: %s\n", resp.Status)
	fmt.Fprintf(out, "Server URL: %s\n", client.BaseURL())
	fmt.Fprintf(out, "Index: %s\n", console.FormatStats(resp.Index))
	return nil
}
