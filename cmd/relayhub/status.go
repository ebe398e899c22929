package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"relayhub/internal/config"
	"relayhub/internal/registry"
	"relayhub/internal/store"
)

func statusCmd() *cobra.Command {
	var (
		addr    string
		history int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show hub health and recent relay history",
		RunE: func(cmd *cobra.Command, args []string) error {
			httpClient := &http.Client{Timeout: 10 * time.Second}
			base := strings.TrimRight(addr, "/")

			resp, err := httpClient.Get(base + "/healthz")
			if err != nil {
				fmt.Printf("hub:       unreachable (%v)\n", err)
				return nil
			}
			resp.Body.Close()
			fmt.Printf("hub:       up (%s)\n", base)

			if resp, err = httpClient.Get(base + "/v1/frontends"); err == nil {
				var entries []registry.EntryInfo
				if err := json.NewDecoder(resp.Body).Decode(&entries); err == nil {
					byState := make(map[string]int)
					for _, e := range entries {
						byState[e.State.String()]++
					}
					fmt.Printf("frontends: %d", len(entries))
					for _, s := range []string{"active", "registered", "stale"} {
						if byState[s] > 0 {
							fmt.Printf("  %s=%d", s, byState[s])
						}
					}
					fmt.Println()
				}
				resp.Body.Close()
			}

			if history > 0 {
				printRecentHistory(history)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8443", "hub address")
	cmd.Flags().IntVar(&history, "history", 5, "recent reports to show from the local history store (0 to skip)")
	return cmd
}

// printRecentHistory reads the local history database directly; WAL mode
// allows reading alongside a running hub.
func printRecentHistory(limit int) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return
	}
	path := config.ExpandPath(cfg.Store.DBPath)
	if _, err := os.Stat(path); err != nil {
		return
	}

	history, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		fmt.Printf("history:   unavailable (%v)\n", err)
		return
	}
	defer history.Close()

	reports, err := history.RecentReports(context.Background(), limit)
	if err != nil || len(reports) == 0 {
		return
	}
	fmt.Println("recent reports:")
	for _, msg := range reports {
		content := msg.Content
		if len(content) > 60 {
			content = content[:57] + "..."
		}
		fmt.Printf("  %s  %-12s %-18s %s\n",
			time.Unix(msg.Timestamp, 0).Format(time.RFC3339), msg.FrontendID, msg.Platform, content)
	}
}
