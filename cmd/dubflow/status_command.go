package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"dubflow/internal/config"
	"dubflow/internal/deps"
	"dubflow/internal/language"
	"dubflow/internal/pipeline"
	"dubflow/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [session]",
		Short: "Show all sessions, or details for one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator) error {
				runCtx, stop := signalContext()
				defer stop()
				if len(args) == 1 {
					return printSessionDetail(cmd, runCtx, st, orch, args[0])
				}
				return printSessionList(cmd, runCtx, orch)
			})
		},
	}
}

func printSessionList(cmd *cobra.Command, ctx context.Context, orch *pipeline.Orchestrator) error {
	sessions, err := orch.Sessions(ctx)
	if err != nil {
		return err
	}
	writer := table.NewWriter()
	writer.SetOutputMirror(cmd.OutOrStdout())
	writer.AppendHeader(table.Row{"Session", "Stage", "Source", "Target", "Updated"})
	for _, sess := range sessions {
		writer.AppendRow(table.Row{
			sess.ID,
			string(sess.Stage),
			trimOrDash(sess.SourceLanguage),
			trimOrDash(sess.TargetLanguage),
			sess.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	writer.Render()
	return nil
}

func printSessionDetail(cmd *cobra.Command, ctx context.Context, st *store.Store, orch *pipeline.Orchestrator, id string) error {
	sess, err := orch.Session(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:  %s\n", sess.ID)
	fmt.Fprintf(out, "Stage:    %s\n", sess.Stage)
	fmt.Fprintf(out, "Source:   %s\n", languageLabel(sess.SourceLanguage))
	fmt.Fprintf(out, "Target:   %s\n", languageLabel(sess.TargetLanguage))
	fmt.Fprintf(out, "Audio:    %s\n", trimOrDash(sess.AudioPath))
	fmt.Fprintf(out, "Output:   %s\n", trimOrDash(sess.SynthesisPath))
	if sess.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s (failed action: %s)\n", sess.ErrorMessage, sess.FailedAction)
	}

	if record, ok, err := orch.Progress(ctx, id); err == nil && ok {
		fmt.Fprintf(out, "Progress: %s %.0f%% (%s)\n", record.Stage, record.Percent, record.Message)
	}

	result, err := st.Validation(ctx, id)
	if err == nil {
		fmt.Fprintf(out, "Score:    %.1f (weights %s)\n", result.Composite, result.WeightsVersion)
		writer := table.NewWriter()
		writer.SetOutputMirror(out)
		writer.AppendHeader(table.Row{"Metric", "Value"})
		for name, value := range result.Metrics {
			writer.AppendRow(table.Row{name, fmt.Sprintf("%.3f", value)})
		}
		writer.Render()
	}
	return nil
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check readiness of every pipeline stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator) error {
				runCtx, stop := signalContext()
				defer stop()
				writer := table.NewWriter()
				writer.SetOutputMirror(cmd.OutOrStdout())
				writer.AppendHeader(table.Row{"Stage", "Ready", "Detail"})
				for _, health := range orch.Health(runCtx) {
					writer.AppendRow(table.Row{health.Name, yesNo(health.Ready), trimOrDash(health.Detail)})
				}
				writer.Render()

				tools := table.NewWriter()
				tools.SetOutputMirror(cmd.OutOrStdout())
				tools.AppendHeader(table.Row{"Tool", "Available", "Detail"})
				for _, status := range deps.CheckBinaries(deps.Defaults(cfg)) {
					name := status.Name
					if status.Optional {
						name += " (optional)"
					}
					tools.AppendRow(table.Row{name, yesNo(status.Available), trimOrDash(status.Detail)})
				}
				tools.Render()
				return nil
			})
		},
	}
}

func languageLabel(code string) string {
	if strings.TrimSpace(code) == "" {
		return "- (detect)"
	}
	return fmt.Sprintf("%s (%s)", language.DisplayName(code), code)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
