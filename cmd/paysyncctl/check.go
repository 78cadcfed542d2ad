package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/paysync/internal/config"
	"github.com/punchamoorthee/paysync/internal/diag"
)

var errChecksFailed = errors.New("one or more endpoints failed")

func checkCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the upstream payments API",
		Long: `Probe the upstream payments API health, status, corridors and routes
endpoints. The base URL defaults to API_URL from the environment or config file.

Examples:
  paysyncctl check
  paysyncctl check --url http://localhost:3001 --json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				baseURL = cfg.APIURL
			}

			results := diag.Check(cmd.Context(), nil, baseURL, diag.DefaultEndpoints(), timeout)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				printResults(baseURL, results)
			}

			if !diag.AllOK(results) {
				return errChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "upstream API base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", diag.DefaultTimeout, "per-endpoint timeout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func printResults(baseURL string, results []diag.Result) {
	fmt.Printf("Testing %s\n\n", baseURL)
	for _, r := range results {
		if r.OK {
			fmt.Printf("  %-20s PASSED  (%d, %s)\n", r.Description, r.Status, r.Elapsed.Round(time.Millisecond))
			if r.Preview != "" {
				preview := r.Preview
				if len(preview) > 80 {
					preview = preview[:80] + "..."
				}
				fmt.Printf("    %s\n", preview)
			}
			continue
		}
		fmt.Printf("  %-20s FAILED  %s\n", r.Description, r.Error)
	}
	fmt.Println()
	if diag.AllOK(results) {
		fmt.Println("All endpoints reachable.")
	} else {
		fmt.Println("Issues found. Check that the API is running and API_URL is correct.")
	}
}
