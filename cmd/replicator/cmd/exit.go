package cmd

import (
	"github.com/spf13/cobra"
)

var exitCmd = &cobra.Command{
	Use:   "exit <master-order-id>",
	Short: "Cancel the follower orders tracking a master order",
	Long: `Cancel every follower order mapped to the given master order and mark the
mappings CANCELLED. Mappings already in a terminal state are skipped, so
running exit twice is safe.`,
	Args: cobra.ExactArgs(1),
	RunE: runExit,
}

func init() {
	rootCmd.AddCommand(exitCmd)
}

func runExit(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	results, err := d.engine.Exit(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}
