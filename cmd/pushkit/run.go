package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/pushkit/internal/models"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run <job> [argument]",
	Short: "Runs one job in the foreground.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(dryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		argument := ""
		if len(args) == 2 {
			argument = args[1]
		}
		rec, err := a.runner.Run(cmd.Context(), args[0], argument)
		if rec.Status == "" {
			// Unknown or busy: nothing ran.
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run #%d %s: %s, sent %d\n", rec.ID, rec.Job, rec.Status, rec.Sent)
		if rec.Status != models.RunOK {
			return fmt.Errorf("%s %s: %s", rec.Job, rec.Status, rec.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log notifications instead of delivering them")
	rootCmd.AddCommand(runCmd)
}
