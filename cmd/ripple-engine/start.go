package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/floodlib/ripple-engine/internal/api"
	"github.com/floodlib/ripple-engine/internal/api/middleware"
	"github.com/floodlib/ripple-engine/internal/config"
	"github.com/floodlib/ripple-engine/internal/jobstore"
	"github.com/floodlib/ripple-engine/internal/metrics"
	"github.com/floodlib/ripple-engine/internal/pipeline"
	"github.com/floodlib/ripple-engine/internal/registry"
	"github.com/floodlib/ripple-engine/internal/supervisor"
	"github.com/floodlib/ripple-engine/internal/worker"
)

const queuePollInterval = 15 * time.Second

// defaultPIDFile is where `start` records its process id so `stop` can
// find it without a process manager; RIPPLE_PID_FILE overrides it.
const defaultPIDFile = "/var/run/ripple-engine.pid"

var (
	startPort    int
	startThreads int
	startDevMode bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ripple-engine API server and worker pool",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().IntVar(&startPort, "port", 0, "HTTP port (overrides RIPPLE_PORT)")
	startCmd.Flags().IntVar(&startThreads, "threads", 0, "worker pool size (defaults to max(NumCPU-2, 1))")
	startCmd.Flags().BoolVar(&startDevMode, "dev", false, "use an in-process job store instead of Postgres (single node only)")
}

// runStart wires the job store, process registry, worker pool, process
// supervisor, metrics registry, and HTTP server, then blocks on the
// server's graceful-shutdown lifecycle.
func runStart(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	pidFile := config.GetEnvStr("RIPPLE_PID_FILE", defaultPIDFile)
	if err := writePIDFile(pidFile); err != nil {
		logger.Warn("failed to write pid file, `stop` will not be able to find this process", "path", pidFile, "error", err.Error())
	} else {
		defer func() { _ = os.Remove(pidFile) }()
	}

	store, err := openJobStore(logger)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}

	reg := registry.New()
	reg.RegisterAll(pipeline.Descriptors())

	overrides, err := registry.LoadOverridesFromEnv()
	if err != nil {
		logger.Warn("failed to load registry overrides", "error", err.Error())
	} else {
		reg.Apply(overrides)
	}

	// The API's /metrics endpoint serves the default Prometheus registry.
	metricsReg := metrics.New(prometheus.DefaultRegisterer)

	binaryPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve own executable path: %w", err)
	}

	sup := supervisor.New(store, childCommandFactory(binaryPath), logger, supervisor.GraceWindow)
	sup.SetMetrics(metricsReg)

	pool := worker.New(store, sup, worker.Config{Size: startThreads}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	defer pool.Shutdown(supervisor.GraceWindow)

	go metrics.PollQueueDepth(ctx, store, metricsReg, queuePollInterval, logger)

	serverCfg := api.LoadServerConfig()
	if startPort > 0 {
		serverCfg.Port = startPort
	}

	rateLimiterCfg := middleware.LoadConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(rateLimiterCfg)
	defer rateLimiter.Close()

	server := api.NewServer(&serverCfg, store, reg, sup, rateLimiter, metricsReg)

	logger.Info("ripple-engine starting",
		"threads", pool.Size(),
		"registered_processes", reg.Names(),
		"dev_mode", startDevMode,
	)

	return server.Start()
}

// openJobStore opens the Postgres-backed job store from DATABASE_URL, or
// falls back to an in-memory store when --dev is set (single-node
// development mode; never safe to run with more than one ripple-engine
// process against the same queue).
func openJobStore(logger *slog.Logger) (jobstore.Store, error) {
	if startDevMode {
		logger.Warn("starting in development mode: job store is in-memory and will not survive a restart")

		return jobstore.NewMemoryStore(), nil
	}

	cfg := jobstore.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job store configuration: %w", err)
	}

	conn, err := jobstore.NewConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to job store database: %w", err)
	}

	return jobstore.NewPostgresStore(conn), nil
}

// writePIDFile records the current process id at path, for `stop` to read.
func writePIDFile(path string) error {
	return os.WriteFile(path, fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644) //nolint:gosec // pid files are world-readable by convention
}

// childCommandFactory builds the re-exec command the supervisor uses to run
// one job: the same binary, invoked with the hidden run-job subcommand.
func childCommandFactory(binaryPath string) supervisor.CommandFactory {
	return func(ctx context.Context, job *jobstore.Job) *exec.Cmd {
		cmd := exec.CommandContext(ctx, binaryPath, "run-job", "--job-id", job.JobID.String())
		cmd.Env = os.Environ()

		return cmd
	}
}
