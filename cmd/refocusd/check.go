package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/refocus/internal/config"
	"github.com/goodtune/refocus/internal/domains"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check tracking decisions interactively",
	Long:  `Check what Refocus would do for a given page.`,
}

var checkURLCmd = &cobra.Command{
	Use:   "url URL...",
	Short: "Check whether URLs are on a tracked domain",
	Long:  `Check whether Refocus would monitor pages at the given URLs.`,
	Example: `  refocusd -c config.yaml check url https://www.reddit.com/r/golang
  refocusd check url https://youtube.com/watch https://example.com/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheckURL,
}

func init() {
	checkCmd.AddCommand(checkURLCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckURL(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	matcher := domains.NewMatcher(cfg.Tracking.Domains)

	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	for _, url := range args {
		if domain, ok := matcher.Match(url); ok {
			_, _ = green.Fprintf(os.Stdout, "TRACKED   %s (%s)\n", url, domain)
		} else {
			_, _ = yellow.Fprintf(os.Stdout, "IGNORED   %s\n", url)
		}
	}

	return nil
}
