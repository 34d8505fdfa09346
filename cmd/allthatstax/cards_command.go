package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"allthatstax/internal/api"
	"allthatstax/internal/dataset"
)

func newCardsCommand(ctx *commandContext) *cobra.Command {
	var (
		tag      string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "cards",
		Short: "List cards in the committed dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ds, err := dataset.NewStore(cfg.Paths.DatasetFile).Load()
			if err != nil {
				return err
			}
			resp := api.FromDataset(ds, strings.TrimSpace(tag))
			if jsonMode {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if resp.Count == 0 {
				fmt.Fprintln(out, "No cards in dataset")
				return nil
			}
			rows := make([][]string, 0, len(resp.Cards))
			for _, rec := range resp.Cards {
				rows = append(rows, []string{
					rec.ID,
					rec.EnglishName,
					orDash(rec.ChineseName),
					strings.ToUpper(rec.SetCode) + " " + rec.CollectorNumber,
					orDash(rec.StaxType),
					joinOrDash(rec.Tags),
				})
			}
			headers := []string{"ID", "Name", "Chinese", "Print", "Stax", "Tags"}
			fmt.Fprintln(out, renderTable(headers, rows, nil))
			fmt.Fprintf(out, "%d cards", resp.Count)
			if resp.UpdatedAt != "" {
				fmt.Fprintf(out, ", updated %s", resp.UpdatedAt)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Only list cards carrying this tag")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}
