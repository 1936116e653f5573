package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/floodlib/ripple-engine/internal/config"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Send SIGTERM to a running ripple-engine server, found via its pid file",
	RunE:  runStop,
}

// runStop reads the pid `start` recorded and sends it SIGTERM, letting the
// server's own signal handler drive the graceful-shutdown path in
// internal/api.Server.Start. It does not wait for the process to exit.
func runStop(_ *cobra.Command, _ []string) error {
	pidFile := config.GetEnvStr("RIPPLE_PID_FILE", defaultPIDFile)

	data, err := os.ReadFile(pidFile) //nolint:gosec // operator-controlled path
	if err != nil {
		return fmt.Errorf("failed to read pid file %q: %w", pidFile, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("pid file %q does not contain a valid process id: %w", pidFile, err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	fmt.Printf("ripple-engine: sent SIGTERM to pid %d\n", pid)

	return nil
}
