// Package main provides the ripple-engine hydraulic workflow service: an
// HTTP job-submission surface backed by a Postgres job store and a
// fixed-size worker pool that supervises one child process per job.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	version = "0.1.0-dev"
	name    = "ripple-engine"
)

var rootCmd = &cobra.Command{
	Use:     name,
	Short:   "Hydraulic workflow engine: flood inundation maps and rating curves as a job service",
	Version: version,
}

func init() {
	rootCmd.AddCommand(startCmd, statusCmd, stopCmd, runJobCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
