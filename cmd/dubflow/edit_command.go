package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dubflow/internal/config"
	"dubflow/internal/pipeline"
	"dubflow/internal/segments"
	"dubflow/internal/store"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var updatesFile string
	var sets []string

	cmd := &cobra.Command{
		Use:   "edit <session>",
		Short: "Apply segment edits to a session's transcript or translation",
		Long: `Apply segment edits to a session's stored segments.

Edits are given either inline with repeated --set flags in the form
ID:FIELD=VALUE (FIELD is speaker, text, or translated), or as a JSON file
mapping segment IDs to partial updates:

  {"3": {"speaker": "SPEAKER_01", "text": "corrected line"}}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseArtifactKind(kindFlag)
			if err != nil {
				return err
			}
			updates, err := collectUpdates(sets, updatesFile)
			if err != nil {
				return err
			}
			if len(updates) == 0 {
				return fmt.Errorf("no edits given; use --set or --updates")
			}
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator) error {
				runCtx, stop := signalContext()
				defer stop()

				logger, err := ctx.logger()
				if err != nil {
					return err
				}
				editor := segments.NewEditor(st, logger)
				result, err := editor.Apply(runCtx, args[0], kind, updates)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %d of %d edits applied\n", result.Outcome, result.Applied, len(updates))
				if len(result.Errors) > 0 {
					ids := make([]int, 0, len(result.Errors))
					for id := range result.Errors {
						ids = append(ids, id)
					}
					sort.Ints(ids)
					for _, id := range ids {
						fmt.Fprintf(out, "  segment %d: %s\n", id, result.Errors[id])
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "translation", "Segment collection to edit (diarization or translation)")
	cmd.Flags().StringVar(&updatesFile, "updates", "", "JSON file of segment updates")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Inline edit in the form ID:FIELD=VALUE")
	return cmd
}

func parseArtifactKind(value string) (store.ArtifactKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "diarization", "transcript":
		return store.ArtifactDiarization, nil
	case "translation":
		return store.ArtifactTranslation, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q (expected diarization or translation)", value)
	}
}

func collectUpdates(sets []string, updatesFile string) (map[int]segments.Update, error) {
	updates := make(map[int]segments.Update)

	if updatesFile != "" {
		data, err := os.ReadFile(updatesFile)
		if err != nil {
			return nil, fmt.Errorf("read updates file: %w", err)
		}
		var decoded map[string]segments.Update
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("parse updates file: %w", err)
		}
		for key, update := range decoded {
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("segment ID %q is not a number", key)
			}
			updates[id] = update
		}
	}

	for _, set := range sets {
		id, update, err := parseSet(set)
		if err != nil {
			return nil, err
		}
		merged := updates[id]
		if update.Speaker != nil {
			merged.Speaker = update.Speaker
		}
		if update.Text != nil {
			merged.Text = update.Text
		}
		if update.TranslatedText != nil {
			merged.TranslatedText = update.TranslatedText
		}
		updates[id] = merged
	}
	return updates, nil
}

func parseSet(raw string) (int, segments.Update, error) {
	var update segments.Update
	idPart, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, update, fmt.Errorf("malformed --set %q (expected ID:FIELD=VALUE)", raw)
	}
	id, err := strconv.Atoi(strings.TrimSpace(idPart))
	if err != nil {
		return 0, update, fmt.Errorf("segment ID %q is not a number", idPart)
	}
	field, value, ok := strings.Cut(rest, "=")
	if !ok {
		return 0, update, fmt.Errorf("malformed --set %q (expected ID:FIELD=VALUE)", raw)
	}
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "speaker":
		update.Speaker = &value
	case "text":
		update.Text = &value
	case "translated", "translated_text":
		update.TranslatedText = &value
	default:
		return 0, update, fmt.Errorf("unknown field %q (expected speaker, text, or translated)", field)
	}
	return id, update, nil
}
