package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"allthatstax/internal/api"
	"allthatstax/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var (
		offline  bool
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, the card list and source reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, !offline)
			failed := preflight.Failed(results)

			if jsonMode {
				if err := writeJSON(cmd, api.FromPreflight(results)); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					if !r.Passed {
						status = "FAIL"
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip network reachability checks")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}
