package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dwizi/trapper/internal/app"
	"github.com/dwizi/trapper/internal/config"
	"github.com/dwizi/trapper/internal/persist"
)

type snapshotRow struct {
	ChatID       int64  `json:"chat_id"`
	Alias        string `json:"alias,omitempty"`
	Expressions  int    `json:"expressions"`
	Thoughts     int    `json:"thoughts"`
	MarkovTokens int    `json:"markov_tokens"`
}

func newSnapshotCommand(logger *slog.Logger) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load the configured snapshot and print per-chat counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			ctx := context.Background()
			manager, backend, err := app.OpenSnapshots(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			registry, aliases := manager.Load(ctx)

			rows := make([]snapshotRow, 0, registry.Len())
			for _, chatID := range registry.ChatIDs() {
				stats, err := registry.Stats(chatID)
				if err != nil {
					return fmt.Errorf("stats for chat %d: %w", chatID, err)
				}
				alias, _ := aliases.LookupByChat(chatID)
				rows = append(rows, snapshotRow{
					ChatID:       chatID,
					Alias:        alias,
					Expressions:  stats.Expressions,
					Thoughts:     stats.Thoughts,
					MarkovTokens: stats.MarkovTokens,
				})
			}

			var documents []persist.DocumentInfo
			if lister, ok := backend.(persist.Lister); ok {
				documents, err = lister.ListDocuments(ctx)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(map[string]any{"storage": cfg.Storage, "documents": documents, "chats": rows})
			}
			writer := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "CHAT\tALIAS\tEXPRESSIONS\tTHOUGHTS\tMARKOV TOKENS")
			for _, row := range rows {
				alias := row.Alias
				if alias == "" {
					alias = "-"
				}
				fmt.Fprintf(writer, "%d\t%s\t%d\t%d\t%d\n", row.ChatID, alias, row.Expressions, row.Thoughts, row.MarkovTokens)
			}
			if len(documents) > 0 {
				fmt.Fprintln(writer)
				fmt.Fprintln(writer, "DOCUMENT\tBYTES")
				for _, document := range documents {
					fmt.Fprintf(writer, "%s\t%d\n", document.Name, document.Size)
				}
			}
			return writer.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
