package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"dubflow/internal/config"
	"dubflow/internal/pipeline"
	"dubflow/internal/session"
	"dubflow/internal/store"
)

func newNewCommand(ctx *commandContext) *cobra.Command {
	var fileFlag string
	var urlFlag string
	var sourceFlag string
	var targetFlag string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a dubbing session from an audio file or video URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (fileFlag == "") == (urlFlag == "") {
				return fmt.Errorf("exactly one of --file or --url is required")
			}
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator) error {
				runCtx, stop := signalContext()
				defer stop()

				var sess *session.Session
				var err error
				if fileFlag != "" {
					path, pathErr := config.ExpandPath(fileFlag)
					if pathErr != nil {
						return pathErr
					}
					sess, err = orch.NewSessionFromFile(runCtx, path, sourceFlag, targetFlag)
				} else {
					sess, err = orch.NewSessionFromURL(runCtx, urlFlag, sourceFlag, targetFlag)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fileFlag, "file", "", "Path to the source audio file")
	cmd.Flags().StringVar(&urlFlag, "url", "", "YouTube or Instagram video URL")
	cmd.Flags().StringVar(&sourceFlag, "source", "", "Source language tag (detected when omitted)")
	cmd.Flags().StringVar(&targetFlag, "target", "", "Target language tag")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newAdvanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <session> <action>",
		Short: "Run one pipeline action (transcribe, translate, synthesize, validate)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, ok := session.ParseAction(args[1])
			if !ok {
				return fmt.Errorf("unknown action %q", args[1])
			}
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator) error {
				runCtx, stop := signalContext()
				defer stop()
				if err := orch.Advance(runCtx, args[0], action); err != nil {
					return err
				}
				sess, err := orch.Session(runCtx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s is now %s\n", sess.ID, sess.Stage)
				return nil
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <session>",
		Short: "Advance a session through every remaining stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one session ID")
			}
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator) error {
				lock := flock.New(filepath.Join(cfg.Paths.WorkspaceDir, "run.lock"))
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire run lock: %w", err)
				}
				if !locked {
					return fmt.Errorf("another dubflow run is already active")
				}
				defer lock.Unlock()

				runCtx, stop := signalContext()
				defer stop()

				done := make(chan error, 1)
				go func() {
					done <- orch.Run(runCtx, args[0])
				}()

				bar := newStageBar(cmd)
				poll := time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second
				if poll <= 0 {
					poll = time.Second
				}
				ticker := time.NewTicker(poll)
				defer ticker.Stop()
				for {
					select {
					case err := <-done:
						finishStageBar(bar, runCtx, orch, args[0])
						return err
					case <-ticker.C:
						if record, ok, recErr := orch.Progress(runCtx, args[0]); recErr == nil && ok {
							bar.Describe(fmt.Sprintf("%s: %s", record.Stage, record.Message))
							_ = bar.Set(int(record.Percent))
						}
					}
				}
			})
		},
	}
}

func newStageBar(cmd *cobra.Command) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func finishStageBar(bar *progressbar.ProgressBar, ctx context.Context, orch *pipeline.Orchestrator, sessionID string) {
	if record, ok, err := orch.Progress(ctx, sessionID); err == nil && ok {
		bar.Describe(fmt.Sprintf("%s: %s", record.Stage, record.Message))
		_ = bar.Set(int(record.Percent))
	}
	_ = bar.Finish()
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <session>",
		Short: "Re-run the action that failed a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator) error {
				runCtx, stop := signalContext()
				defer stop()
				if err := orch.Retry(runCtx, args[0]); err != nil {
					return err
				}
				sess, err := orch.Session(runCtx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s is now %s\n", sess.ID, sess.Stage)
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset <session>",
		Short: "Return a session to the input stage, discarding artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset discards all artifacts for the session; pass --yes to confirm")
			}
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator) error {
				runCtx, stop := signalContext()
				defer stop()
				if err := orch.Reset(runCtx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s reset\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func trimOrDash(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "-"
	}
	return trimmed
}
