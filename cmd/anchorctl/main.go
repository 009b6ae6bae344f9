// anchorctl manages the routing anchors of a running service instance over
// its admin API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "anchorctl",
		Short: "Manage routing anchors",
		Long:  "anchorctl lists, adds, and deletes the anchor phrases used by semantic query routing.",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8085", "base URL of the service")

	rootCmd.AddCommand(newListCmd(), newAddCmd(), newDeleteCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all anchors",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := doRequest(http.MethodGet, "/v1/copilot/anchors", nil)
			if err != nil {
				return err
			}

			var resp struct {
				Anchors []struct {
					Text string `json:"text"`
					Type string `json:"type"`
				} `json:"anchors"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			for _, a := range resp.Anchors {
				fmt.Printf("%-10s %s\n", a.Type, a.Text)
			}
			fmt.Printf("%d anchors\n", len(resp.Anchors))
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	var anchorType string
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add an anchor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]string{
				"text": args[0],
				"type": strings.ToUpper(anchorType),
			})
			if err != nil {
				return err
			}

			if _, err := doRequest(http.MethodPost, "/v1/copilot/anchors", payload); err != nil {
				return err
			}
			fmt.Printf("added %s anchor: %s\n", strings.ToUpper(anchorType), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&anchorType, "type", "GREETING", "anchor type: GREETING or UNSAFE")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <text>",
		Short: "Delete anchors matching the exact text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/copilot/anchors?text=" + url.QueryEscape(args[0])
			if _, err := doRequest(http.MethodDelete, path, nil); err != nil {
				return err
			}
			fmt.Printf("deleted anchors with text: %s\n", args[0])
			return nil
		},
	}
}

func doRequest(method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
