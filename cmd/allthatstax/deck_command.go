package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"allthatstax/internal/cardlist"
	"allthatstax/internal/config"
	"allthatstax/internal/workflow"
)

func newDeckCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "deck <moxfield-url-or-id>",
		Short: "Save a Moxfield deck as the card list",
		Long: `Download a Moxfield deck and write its mainboard as a JSON card list.
Deck categories become card tags. The file defaults to paths.card_list so a
following "allthatstax fetch" picks it up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			target := strings.TrimSpace(output)
			if target == "" {
				target = cfg.Paths.CardList
			} else if target, err = config.ExpandPath(target); err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}

			source, err := workflow.NewDeckSource(cfg, logger)
			if err != nil {
				return err
			}
			deck, err := source.Deck(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			file := cardlist.NewDeckFile("moxfield", deck.ID, deck.Name, deck.Cards)
			if err := cardlist.WriteDeck(target, file); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			name := deck.Name
			if name == "" {
				name = deck.ID
			}
			fmt.Fprintf(out, "Saved %d cards (%d entries) from %s to %s\n", file.Total(), len(file.Cards), name, target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to paths.card_list)")
	return cmd
}
