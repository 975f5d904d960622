package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/me/ghrun/internal/action"
	"github.com/me/ghrun/internal/cleanup"
	"github.com/me/ghrun/internal/parse"
	"github.com/me/ghrun/internal/runtime"
	"github.com/me/ghrun/internal/scheduler"
	"github.com/me/ghrun/internal/server"
	"github.com/me/ghrun/internal/validate"
	"github.com/me/ghrun/pkg/events"
	"github.com/me/ghrun/pkg/workflow"
)

// newRunCmd mirrors the teacher's `run` subcommand shape (parse, stand
// up dependencies, execute, report an exit code) but targets this
// module's own in-process scheduler instead of an HTTP submission to a
// GoWe server, since ghrun has no server of its own.
func newRunCmd() *cobra.Command {
	var jobFilter string
	var workspace string
	var mode string
	var maxConcurrentJobs int
	var matrixMaxParallel int
	var serve bool
	var addr string

	cmd := &cobra.Command{
		Use:   "run <workflow.yml>",
		Short: "Validate and execute a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			wf, err := parse.New(logger).File(data, path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}

			warnings, verr := validate.New(logger).Validate(wf)
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			if verr != nil {
				fmt.Fprintln(os.Stderr, verr)
				os.Exit(2)
			}

			if jobFilter != "" {
				filterJobs(wf, jobFilter)
			}
			if matrixMaxParallel > 0 {
				applyMaxParallelOverride(wf, matrixMaxParallel)
			}

			if workspace == "" {
				workspace, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("getwd: %w", err)
				}
			}
			workspace, err = filepath.Abs(workspace)
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}

			cacheDir, err := actionCacheDir()
			if err != nil {
				return fmt.Errorf("resolve action cache dir: %w", err)
			}

			tmpDir, err := os.MkdirTemp("", "ghrun-")
			if err != nil {
				return fmt.Errorf("create run tmpdir: %w", err)
			}
			defer os.RemoveAll(tmpDir)

			registry := cleanup.NewRegistry()
			registry.Add(cleanup.Handle{
				Kind: cleanup.KindTempDir,
				ID:   tmpDir,
				Close: func(context.Context) error {
					return os.RemoveAll(tmpDir)
				},
			})

			resolver := action.NewResolver(cacheDir, workspace)
			sink := events.NewSink()

			var containerRT runtime.Runtime
			runtimeMode := runtime.ModeEmulation
			if mode == "container" {
				rt, err := runtime.NewContainerRuntime(logger, sink, registry)
				if err != nil {
					return fmt.Errorf("connect to docker: %w", err)
				}
				containerRT = rt
				runtimeMode = runtime.ModeContainer
			}
			emulationRT := runtime.NewEmulationRuntime(logger, sink)

			exec := runtime.NewExecutor(resolver, containerRT, emulationRT, sink, runtimeMode)
			sched := scheduler.NewScheduler(exec, sink, maxConcurrentJobs)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCtx, stopSig := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stopSig()

			if serve {
				srv := server.New(logger)
				srv.Register(wf.DisplayName(), sink)
				defer srv.Unregister(wf.DisplayName())

				httpSrv := &http.Server{Addr: addr, Handler: srv}
				go func() {
					if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("event server stopped", "error", err)
					}
				}()
				defer httpSrv.Close()
				fmt.Printf("streaming events on http://%s/runs/%s/events\n", addr, wf.DisplayName())
			}

			stopPrinter := startConsolePrinter(sink)
			defer stopPrinter()

			run := sched.Schedule(sigCtx, wf, scheduler.Options{
				WorkflowName: wf.DisplayName(),
				Workspace:    workspace,
				RunID:        wf.DisplayName(),
				TmpDir:       tmpDir,
			})

			runErr := run.Wait()

			drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer drainCancel()
			for _, cerr := range registry.Drain(drainCtx) {
				logger.Warn("cleanup error", "error", cerr)
			}
			sink.Close()

			if sigCtx.Err() != nil {
				os.Exit(130)
			}
			if runErr != nil {
				fmt.Fprintln(os.Stderr, runErr)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobFilter, "job", "", "Run only this job and its transitive needs")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Step working tree (default: current directory)")
	cmd.Flags().StringVar(&mode, "mode", "emulation", "Execution runtime: container or emulation")
	cmd.Flags().IntVarP(&maxConcurrentJobs, "max-concurrent-jobs", "j", 0, "Global cap on jobs running at once (0 = unlimited)")
	cmd.Flags().IntVar(&matrixMaxParallel, "matrix-max-parallel", 0, "Override every job's own strategy.max-parallel (0 = unchanged)")
	cmd.Flags().BoolVar(&serve, "serve", false, "Expose the run's event stream over SSE")
	cmd.Flags().StringVar(&addr, "addr", opts.Addr, "Listen address for --serve")

	return cmd
}

// filterJobs keeps only jobID and every job it transitively needs,
// dropping the rest of wf.Jobs in place.
func filterJobs(wf *workflow.Workflow, jobID string) {
	keep := make(map[string]bool)
	var mark func(string)
	mark = func(id string) {
		if keep[id] {
			return
		}
		keep[id] = true
		if job := wf.Jobs[id]; job != nil {
			for _, dep := range job.Needs {
				mark(dep)
			}
		}
	}
	mark(jobID)
	for id := range wf.Jobs {
		if !keep[id] {
			delete(wf.Jobs, id)
		}
	}
}

// applyMaxParallelOverride forces every job's strategy.max-parallel to
// n, creating a zero-value strategy for jobs that had none.
func applyMaxParallelOverride(wf *workflow.Workflow, n int) {
	for _, job := range wf.Jobs {
		if job.Strategy == nil {
			job.Strategy = &workflow.Strategy{}
		}
		job.Strategy.MaxParallel = n
	}
}

func actionCacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "ghrun", "actions"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "ghrun", "actions"), nil
}

// startConsolePrinter drains sink to stdout/stderr until Close is
// called, the minimal stand-in for the out-of-scope terminal UI
// collaborator spec.md leaves unimplemented.
func startConsolePrinter(sink *events.Sink) func() {
	ch, unsubscribe := sink.Subscribe(256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			printEvent(ev)
		}
	}()
	return func() {
		unsubscribe()
		<-done
	}
}

func printEvent(ev events.Event) {
	switch ev.Kind {
	case events.KindWorkflowStarted:
		fmt.Printf("==> %s\n", ev.Workflow)
	case events.KindJobStateChanged:
		fmt.Printf("[job %s] %s\n", jobLabel(ev.JobID, ev.MatrixKey), ev.Status)
	case events.KindStepStateChanged:
		fmt.Printf("[job %s] step %d (%s): %s\n", jobLabel(ev.JobID, ev.MatrixKey), ev.StepIndex, ev.StepName, ev.Status)
	case events.KindLogLine:
		if ev.Stream == "stderr" {
			fmt.Fprintln(os.Stderr, ev.Line)
		} else {
			fmt.Println(ev.Line)
		}
	case events.KindWorkflowFinished:
		fmt.Printf("==> %s: %s\n", ev.Workflow, ev.Status)
	}
}

func jobLabel(jobID, matrixKey string) string {
	if matrixKey == "" {
		return jobID
	}
	return jobID + " (" + matrixKey + ")"
}
