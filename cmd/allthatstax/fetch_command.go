package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"allthatstax/internal/preflight"
	"allthatstax/internal/workflow"
)

const followBatch = 200

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var (
		opts     workflow.Options
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Resolve the card list and update the dataset",
		Long: `Resolve every entry of the card list against Scryfall, attach Chinese
localization from mtgch, download card images and merge the results into the
dataset file. Progress is printed as it happens; Ctrl+C cancels the run and
leaves the previous dataset untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if failed := preflight.Failed(preflight.Storage(cfg)); len(failed) > 0 {
				return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
			}
			runs, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer runs.Close()

			deps, err := workflow.BuildDependencies(cfg, logger, runs)
			if err != nil {
				return err
			}
			manager, err := workflow.NewManager(deps, logger)
			if err != nil {
				return err
			}
			defer manager.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := manager.Start(sigCtx, opts); err != nil {
				return err
			}

			finished := make(chan struct{})
			go func() {
				select {
				case <-sigCtx.Done():
					manager.Cancel()
				case <-finished:
				}
			}()

			var printer *logEntryPrinter
			if !jsonMode {
				printer = newLogEntryPrinter(cmd.OutOrStdout())
			}
			state := followJob(manager, printer)
			close(finished)

			if jsonMode {
				if err := writeJSON(cmd, state); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out)
				for _, line := range formatSummary(state) {
					fmt.Fprintln(out, line)
				}
			}
			if state.Status != workflow.StatusSucceeded {
				return fmt.Errorf("fetch %s: %s", state.Status, state.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.List, "list", "l", "", "Card list file (defaults to paths.card_list)")
	cmd.Flags().StringVar(&opts.Deck, "deck", "", "Moxfield deck URL or id to fetch instead of a list")
	cmd.Flags().BoolVar(&opts.ForceImages, "force-images", false, "Download images even when a local copy exists")
	cmd.Flags().BoolVar(&opts.FromScratch, "from-scratch", false, "Ignore the existing dataset and rebuild it")
	cmd.Flags().BoolVar(&opts.ResetTags, "reset-tags", false, "Replace stored tags with the list's tags")
	cmd.Flags().BoolVar(&opts.SkipLocalization, "skip-localization", false, "Do not query mtgch for Chinese text")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Concurrent resolutions (defaults to fetch.workers)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print the final job state as JSON")
	return cmd
}

// followJob streams journal entries to printer until the job finishes and
// returns its final state. A nil printer only waits.
func followJob(manager *workflow.Manager, printer *logEntryPrinter) workflow.State {
	journal := manager.Journal()
	followCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_, _ = manager.Wait(context.Background())
		cancel()
	}()

	var since uint64
	for {
		entries, next, err := journal.Fetch(followCtx, since, followBatch, true)
		printEntries(printer, entries)
		since = next
		if err != nil {
			break
		}
	}
	// Entries published between the last fetch and the job's end.
	for {
		entries, next, _ := journal.Fetch(context.Background(), since, followBatch, false)
		if len(entries) == 0 {
			break
		}
		printEntries(printer, entries)
		since = next
	}

	state, _ := manager.Wait(context.Background())
	return state
}

func printEntries(printer *logEntryPrinter, entries []workflow.LogEntry) {
	if printer == nil {
		return
	}
	for _, entry := range entries {
		printer.print(entry)
	}
}
