package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"relayhub/internal/domain"
	"relayhub/internal/server"
)

func dispatchCmd() *cobra.Command {
	var (
		addr        string
		frontendID  string
		commandType string
		params      []string
		broadcast   bool
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Push a command to a connected frontend",
		Long:  "Sends a command through a running hub's admin endpoint. Use --all to broadcast to every bound frontend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !broadcast && frontendID == "" {
				return fmt.Errorf("either --frontend or --all is required")
			}

			parameters := make(map[string]string, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q, want key=value", p)
				}
				parameters[k] = v
			}

			req := server.DispatchRequest{
				Command: domain.BotCommand{
					CommandType: commandType,
					Parameters:  parameters,
				},
			}
			if !broadcast {
				req.FrontendID = frontendID
			}

			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			httpClient := &http.Client{Timeout: 10 * time.Second}
			resp, err := httpClient.Post(strings.TrimRight(addr, "/")+"/v1/dispatch", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("dispatch request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				msg, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("hub returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
			}

			var result server.DispatchResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			fmt.Printf("command %s delivered to %d frontend(s)\n", result.CommandID, result.Delivered)
			for id, reason := range result.Failed {
				fmt.Printf("  failed %s: %s\n", id, reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8443", "hub address")
	cmd.Flags().StringVar(&frontendID, "frontend", "", "target frontend id")
	cmd.Flags().StringVar(&commandType, "type", domain.CommandSendMessage, "command type")
	cmd.Flags().StringArrayVar(&params, "param", nil, "command parameter key=value (repeatable)")
	cmd.Flags().BoolVar(&broadcast, "all", false, "broadcast to all connected frontends")
	return cmd
}
