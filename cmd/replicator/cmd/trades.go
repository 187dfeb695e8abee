package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantumalpha/replicator/ledger"
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Query and manage the local trade store",
	Long: `Query ingested trades, or purge them.

Examples:
  replicator trades list
  replicator trades list --account acc-7 --limit 20
  replicator trades clear --account acc-7
  replicator trades clear --all`,
}

var tradesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested trades",
	Args:  cobra.NoArgs,
	RunE:  runTradesList,
}

var tradesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Purge ingested trades for an account, or all",
	Args:  cobra.NoArgs,
	RunE:  runTradesClear,
}

var (
	tradesAccount string
	tradesLimit   int
	tradesOffset  int
	tradesAll     bool
)

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.AddCommand(tradesListCmd)
	tradesCmd.AddCommand(tradesClearCmd)

	tradesCmd.PersistentFlags().StringVar(&tradesAccount, "account", "", "restrict to one account")
	tradesListCmd.Flags().IntVar(&tradesLimit, "limit", 50, "page size")
	tradesListCmd.Flags().IntVar(&tradesOffset, "offset", 0, "page offset")
	tradesClearCmd.Flags().BoolVar(&tradesAll, "all", false, "purge every account")
}

func runTradesList(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	trades, total, err := d.store.ListTrades(cmd.Context(), ledger.TradeFilter{
		Account: tradesAccount,
		Limit:   tradesLimit,
		Offset:  tradesOffset,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d of %d trades\n", len(trades), total)
	for _, t := range trades {
		fmt.Printf("  %-24s %-12s %-10s %-4s qty=%-8d price=%.2f %s\n",
			t.ID, t.Account, t.Symbol, t.Side, t.Quantity, t.Price,
			t.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runTradesClear(cmd *cobra.Command, args []string) error {
	if tradesAccount == "" && !tradesAll {
		return fmt.Errorf("pass --account <id> or --all")
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	deleted, err := d.store.ClearTrades(cmd.Context(), tradesAccount)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d trades\n", deleted)
	return nil
}
