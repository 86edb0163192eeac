package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Lists the registered jobs and their schedule.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		defer a.Close()

		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		planned := map[string][]string{}
		for _, p := range sched.Planned() {
			line := p.Spec + " -> " + p.Next.In(a.loc).Format(time.DateTime)
			if p.Argument != "" {
				line += " (" + p.Argument + ")"
			}
			planned[p.Job] = append(planned[p.Job], line)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tDESCRIPTION\tSCHEDULE")
		for _, j := range a.runner.Registry().List() {
			lines := planned[j.Name()]
			if len(lines) == 0 {
				lines = []string{"-"}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", j.Name(), j.Description(), lines[0])
			for _, l := range lines[1:] {
				fmt.Fprintf(w, "\t\t%s\n", l)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}
