package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one poll cycle over every account",
	Long: `Fetch the trade book of every account with stored credentials and merge
new fills into the local ledger. Already-seen fills are skipped.`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.poller.Poll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("accounts: %d  new trades: %d  failures: %d\n",
		res.Accounts, res.NewTrades, res.Failures)
	return nil
}
