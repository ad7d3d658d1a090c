package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/refocus/internal/api"
	"github.com/goodtune/refocus/internal/stats"
)

var (
	statsAddr    string
	statsTimeout time.Duration
	statsJSON    bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show current browsing stats",
	Long:  `Fetch the popup stats from a running Refocus server and print them.`,
	Example: `  refocusd stats
  refocusd stats --addr http://127.0.0.1:8787 --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsAddr, "addr", "http://127.0.0.1:8787", "Base URL of the Refocus API")
	statsCmd.Flags().DurationVar(&statsTimeout, "timeout", 5*time.Second, "Request timeout")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print the raw JSON response")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	view, raw, err := fetchStats(&http.Client{Timeout: statsTimeout}, statsAddr)
	if err != nil {
		return err
	}

	if statsJSON {
		_, err := os.Stdout.Write(append(raw, '\n'))
		return err
	}

	printStats(os.Stdout, view)
	return nil
}

func fetchStats(client *http.Client, addr string) (stats.View, []byte, error) {
	var view stats.View

	url := strings.TrimRight(addr, "/") + "/api/v1/stats"
	resp, err := client.Get(url)
	if err != nil {
		return view, nil, fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return view, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return view, nil, fmt.Errorf("stats request failed: %s (%d)", apiErr.Error, resp.StatusCode)
		}
		return view, nil, fmt.Errorf("stats request failed: %s", resp.Status)
	}

	if err := json.Unmarshal(body, &view); err != nil {
		return view, nil, fmt.Errorf("invalid stats response: %w", err)
	}
	return view, body, nil
}

// printStats renders the view the way the popup does, with values past
// their threshold in red.
func printStats(w io.Writer, view stats.View) {
	red := color.New(color.FgRed, color.Bold)
	plain := color.New(color.Reset)

	rows := []struct {
		label string
		item  stats.Item
	}{
		{"Time on site", view.TimeOnSite},
		{"Tab switches", view.TabSwitchCount},
		{"Scrolling", view.ScrollCount},
	}

	for _, row := range rows {
		c := plain
		if row.item.Warning {
			c = red
		}
		fmt.Fprintf(w, "%-14s", row.label+":")
		_, _ = c.Fprintln(w, row.item.Display)
	}
}
