package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/floodlib/ripple-engine/internal/api"
	"github.com/floodlib/ripple-engine/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a running ripple-engine server is reachable",
	RunE:  runStatus,
}

// runStatus hits the running server's GET /ping and reports its body. It
// does not read the server's own environment; RIPPLE_HOST/RIPPLE_PORT (or
// their defaults) must describe where that server is actually listening.
func runStatus(_ *cobra.Command, _ []string) error {
	host := config.GetEnvStr("RIPPLE_HOST", "127.0.0.1")
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	port := config.GetEnvInt("RIPPLE_PORT", api.DefaultPort)
	url := fmt.Sprintf("http://%s:%d/ping", host, port)

	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url) //nolint:noctx,gosec // local health check, short-lived CLI process
	if err != nil {
		fmt.Println("ripple-engine: not reachable:", err)

		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var ping api.PingResponse
	if err := json.NewDecoder(resp.Body).Decode(&ping); err != nil {
		fmt.Println("ripple-engine: reachable but returned an unexpected body")

		return err
	}

	fmt.Printf("ripple-engine: %s (%s)\n", ping.Status, url)

	return nil
}
