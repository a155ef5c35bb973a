package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erangalds/t-tool-calling-with-llms/internal/config"
	"github.com/erangalds/t-tool-calling-with-llms/internal/cron"
	"github.com/erangalds/t-tool-calling-with-llms/internal/dependency"
	"github.com/erangalds/t-tool-calling-with-llms/internal/scenarios"
	"github.com/erangalds/t-tool-calling-with-llms/internal/session"
	"github.com/erangalds/t-tool-calling-with-llms/internal/shared/cmdutils"
)

var (
	schedName    string
	schedMessage string
	schedEvery   time.Duration
	schedCron    string
	schedTZ      string
	schedAt      string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [scenario]",
	Short: "Re-run scenarios on a schedule",
	Long: "With a scenario and one of --every, --cron or --at, adds the job and runs\n" +
		"the scheduler until interrupted. Subcommands manage stored jobs.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		spec, err := scheduledJobSpec(args[0])
		if err != nil {
			return err
		}
		job, created, err := cron.NewScheduler(scheduleStorePath()).UpsertJob(spec)
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("✓ Reusing job '%s' (%s): %s\n", job.Name, job.ID, job.Schedule)
		}
		return startScheduler()
	},
}

func init() {
	addScheduleFlags(scheduleCmd)

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleEnableCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
}

func addScheduleFlags(c *cobra.Command) {
	c.Flags().StringVarP(&schedName, "name", "n", "", "Job name (default: scenario name)")
	c.Flags().StringVarP(&schedMessage, "message", "M", "", "User message replacing the scenario prompt")
	c.Flags().DurationVarP(&schedEvery, "every", "e", 0, "Run at a fixed interval, e.g. 10m")
	c.Flags().StringVarP(&schedCron, "cron", "c", "", "Cron expression, e.g. '0 9 * * *'")
	c.Flags().StringVar(&schedTZ, "tz", "", "IANA timezone for --cron")
	c.Flags().StringVar(&schedAt, "at", "", "Run once at an ISO datetime")
}

// ---- add -------------------------------------------------------------------

var scheduleAddCmd = &cobra.Command{
	Use:   "add <scenario>",
	Short: "Add a scheduled scenario run",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		spec, err := scheduledJobSpec(args[0])
		if err != nil {
			return err
		}
		job, err := cron.NewScheduler(scheduleStorePath()).AddJob(spec)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Added job '%s' (%s): %s\n", job.Name, job.ID, job.Schedule)
		return nil
	},
}

func init() {
	addScheduleFlags(scheduleAddCmd)
}

func scheduledJobSpec(scenario string) (cron.JobSpec, error) {
	if _, err := scenarios.Find(scenario); err != nil {
		return cron.JobSpec{}, err
	}
	sched, err := cron.ParseSchedule(schedEvery, schedCron, schedTZ, schedAt)
	if err != nil {
		return cron.JobSpec{}, err
	}
	return cron.JobSpec{
		Name:           schedName,
		Scenario:       scenario,
		Message:        schedMessage,
		Schedule:       sched,
		DeleteAfterRun: sched.Kind == cron.KindAt,
	}, nil
}

// ---- list ------------------------------------------------------------------

var scheduleListAll bool

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE: func(_ *cobra.Command, _ []string) error {
		jobs := cron.NewScheduler(scheduleStorePath()).ListJobs(scheduleListAll)
		if len(jobs) == 0 {
			fmt.Println("No scheduled jobs.")
			return nil
		}
		rows := make([][]string, 0, len(jobs))
		for _, j := range jobs {
			status := "enabled"
			if !j.Enabled {
				status = "disabled"
			}
			if j.State.LastStatus != nil {
				status += ", last " + *j.State.LastStatus
			}
			nextRun := ""
			if j.State.NextRunAtMs != nil {
				nextRun = time.UnixMilli(*j.State.NextRunAtMs).Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{j.ID, j.Name, j.Scenario, j.Schedule.String(), status, nextRun})
		}
		cmdutils.Table(os.Stdout, []int{8, 18, 18, 24, 20},
			[]string{"ID", "Name", "Scenario", "Schedule", "Status", "Next Run"}, rows)
		return nil
	},
}

func init() {
	scheduleListCmd.Flags().BoolVarP(&scheduleListAll, "all", "a", false, "Include disabled jobs")
}

// ---- remove / enable -------------------------------------------------------

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if cron.NewScheduler(scheduleStorePath()).RemoveJob(args[0]) {
			fmt.Printf("✓ Removed job %s\n", args[0])
		} else {
			fmt.Printf("Job %s not found\n", args[0])
		}
		return nil
	},
}

var scheduleDisable bool

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <job-id>",
	Short: "Enable (or disable) a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		job, ok := cron.NewScheduler(scheduleStorePath()).EnableJob(args[0], !scheduleDisable)
		if !ok {
			fmt.Printf("Job %s not found\n", args[0])
			return nil
		}
		action := "enabled"
		if scheduleDisable {
			action = "disabled"
		}
		fmt.Printf("✓ Job '%s' %s\n", job.Name, action)
		return nil
	},
}

func init() {
	scheduleEnableCmd.Flags().BoolVar(&scheduleDisable, "disable", false, "Disable instead of enable")
}

// ---- run / start -----------------------------------------------------------

var scheduleForce bool

var scheduleRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a job now",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sched := cron.NewScheduler(scheduleStorePath())
		sched.SetOnJob(scheduledRun(cfg))
		if !sched.RunJob(ctx, args[0], scheduleForce) {
			fmt.Printf("Failed to run job %s (not found or disabled; use --force)\n", args[0])
		}
		return nil
	},
}

func init() {
	scheduleRunCmd.Flags().BoolVarP(&scheduleForce, "force", "f", false, "Run even if disabled")
}

var scheduleStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scheduler until interrupted",
	Args:  cobra.NoArgs,
	RunE:  func(_ *cobra.Command, _ []string) error { return startScheduler() },
}

func startScheduler() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := cron.NewScheduler(scheduleStorePath())
	sched.SetOnJob(scheduledRun(cfg))
	fmt.Fprintln(os.Stderr, "Scheduler running; Ctrl+C to stop.")
	if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// scheduledRun runs a job's scenario, prints the final answer and saves the
// transcript under the data directory.
func scheduledRun(cfg *config.Config) cron.RunFunc {
	return func(ctx context.Context, job cron.Job) (string, error) {
		sc, err := scenarios.Find(job.Scenario)
		if err != nil {
			return "", err
		}
		run, err := runScenario(ctx, cfg, sc, dependency.Options{Message: job.Message})
		if run.conv != nil && run.result.TurnID != "" {
			path := session.DefaultPath(transcriptDir(), sc.Name, run.result.TurnID)
			if serr := saveTranscript(path, run); serr != nil {
				slog.Warn("Transcript not saved", "job", job.ID, "err", serr)
			}
		}
		if err != nil {
			return run.result.TurnID, err
		}
		cmdutils.PrintResponse(os.Stdout, job.Name, run.result.Final)
		return run.result.TurnID, nil
	}
}

// ---- helpers ---------------------------------------------------------------

func scheduleStorePath() string { return filepath.Join(config.DataDir(), "schedules.json") }

func transcriptDir() string { return filepath.Join(config.DataDir(), "transcripts") }
