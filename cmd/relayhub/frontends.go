package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"relayhub/internal/registry"
)

func frontendsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "frontends",
		Short: "List connections known to a running hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			httpClient := &http.Client{Timeout: 10 * time.Second}
			resp, err := httpClient.Get(strings.TrimRight(addr, "/") + "/v1/frontends")
			if err != nil {
				return fmt.Errorf("frontends request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("hub returned %s", resp.Status)
			}

			var entries []registry.EntryInfo
			if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("no frontends connected")
				return nil
			}
			fmt.Printf("%-24s %-18s %-11s %-6s %s\n", "ID", "PLATFORM", "STATE", "BOUND", "LAST SEEN")
			for _, e := range entries {
				fmt.Printf("%-24s %-18s %-11s %-6t %s\n",
					e.ID, e.Platform, e.State, e.Bound, e.LastSeen.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8443", "hub address")
	return cmd
}
