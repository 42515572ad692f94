package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/drover/pkg/agent"
	"github.com/cuemby/drover/pkg/clock"
	"github.com/cuemby/drover/pkg/cloud"
	"github.com/cuemby/drover/pkg/config"
	"github.com/cuemby/drover/pkg/log"
	"github.com/cuemby/drover/pkg/metrics"
	"github.com/cuemby/drover/pkg/schedule"
	"github.com/cuemby/drover/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "drover",
	Short: "Drover - distributed cron-style job scheduling for node groups",
	Long: `Drover runs scheduled jobs across a group of homogeneous worker
nodes. The oldest node in each group takes leadership and queues due
jobs, assigns them to nodes under weight and version constraints,
recovers work from dead nodes, and drives capacity-based autoscaling.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Drover version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the Drover node agent",
	Long: `Run the Drover agent on this node.

The agent registers the node in its group, participates in leader
election, executes assigned jobs, and serves metrics. Leader duties
activate automatically when this node becomes the oldest in its group.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.Node.Version == "" {
			cfg.Node.Version = Version
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})
		metrics.SetVersion(Version)

		store, err := storage.NewBoltStore(cfg.Node.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		source := schedule.NewFileSource(cfg.ScheduleFile)
		a := agent.New(cfg, store, source, cloud.NewLogManager(), clock.Real{})

		if err := a.Start(); err != nil {
			return fmt.Errorf("failed to start agent: %w", err)
		}

		// Wait for interrupt signal
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		a.Stop()
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Work with schedule files",
}

var scheduleValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a schedule file and preview next firings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := schedule.NewFileSource(args[0]).GetJobsSchedule()
		if err != nil {
			return err
		}

		for _, job := range jobs {
			expr, err := schedule.Parse(job.Schedule.Cron)
			if err != nil {
				return err
			}

			next := expr.FireTimesSince(clock.Real{}.Now())
			fmt.Printf("%s (lock=%s, weight=%d, priority=%d)\n", job.JobID, job.Lock, job.Weight, job.Priority)
			for i := 0; i < 3; i++ {
				fmt.Printf("  next: %s\n", next().Format("2006-01-02 15:04:05"))
			}
		}

		fmt.Printf("✓ %d jobs valid\n", len(jobs))
		return nil
	},
}

func init() {
	agentCmd.Flags().StringP("config", "c", "/etc/drover/config.yaml", "Path to the configuration file")
	scheduleCmd.AddCommand(scheduleValidateCmd)
}
