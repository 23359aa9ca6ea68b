package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weby-homelab/light-monitor-kyiv/app"
	"github.com/weby-homelab/light-monitor-kyiv/config"
	"github.com/weby-homelab/light-monitor-kyiv/core/history"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill <events.json>",
	Short: "Merge manually captured transition events into the log",
	Long: "Reads a JSON array of transition records and folds them into the " +
		"configured event log. Duplicates are dropped on (timestamp, group, event).",
	Args: cobra.ExactArgs(1),
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

// Replacer is implemented by log backends that can rewrite the whole log
// atomically. Backends without it get the merged diff appended instead.
type Replacer interface {
	Replace(ctx context.Context, records []history.EventRecord) error
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var incoming []history.EventRecord
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	if len(incoming) == 0 {
		return fmt.Errorf("%s holds no records", args[0])
	}

	events, err := app.OpenHistory(cfg.History)
	if err != nil {
		return err
	}
	defer events.Close()

	ctx := cmd.Context()
	existing, err := events.Query(ctx, history.Query{})
	if err != nil {
		return err
	}
	merged := history.Merge(existing, incoming)
	added := len(merged) - len(existing)

	if r, ok := events.(Replacer); ok {
		if err := r.Replace(ctx, merged); err != nil {
			return err
		}
	} else {
		known := make(map[string]bool, len(existing))
		for _, rec := range existing {
			known[recordKey(rec)] = true
		}
		for _, rec := range merged {
			if known[recordKey(rec)] {
				continue
			}
			if err := events.Append(ctx, rec); err != nil {
				return err
			}
		}
	}
	fmt.Printf("merged %d records, %d new\n", len(merged), added)
	return nil
}

func recordKey(rec history.EventRecord) string {
	return fmt.Sprintf("%d|%s|%s", rec.Timestamp.Unix(), rec.Group, rec.Event)
}
