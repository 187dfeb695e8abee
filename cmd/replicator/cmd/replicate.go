package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/replicate"
	"github.com/quantumalpha/replicator/trade"
)

var replicateCmd = &cobra.Command{
	Use:   "replicate <master-order-id>",
	Short: "Fan one master trade out to the followers",
	Long: `Replicate a master trade already present in the local ledger. Use
--follower to restrict the fan-out to specific follower accounts;
without it every active, consented follower is considered.

Examples:
  replicator replicate M-1001
  replicator replicate M-1001 --follower acc-7 --follower acc-9`,
	Args: cobra.ExactArgs(1),
	RunE: runReplicate,
}

var replicateFollowers []string

func init() {
	rootCmd.AddCommand(replicateCmd)
	replicateCmd.Flags().StringArrayVar(&replicateFollowers, "follower", nil, "follower account id (repeatable)")
}

func runReplicate(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()
	ctx := cmd.Context()

	t, err := findMasterTrade(ctx, d, args[0])
	if err != nil {
		return err
	}

	results, err := d.engine.Replicate(ctx, t, replicateFollowers)
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}

func findMasterTrade(ctx context.Context, d *deps, orderID string) (trade.Trade, error) {
	masterID, err := d.followers.MasterAccountID(ctx)
	if err != nil {
		return trade.Trade{}, err
	}
	if masterID == "" {
		return trade.Trade{}, fmt.Errorf("no master account designated")
	}

	trades, _, err := d.store.ListTrades(ctx, ledger.TradeFilter{Account: masterID})
	if err != nil {
		return trade.Trade{}, err
	}
	for _, t := range trades {
		if t.ID == orderID {
			return t, nil
		}
	}
	return trade.Trade{}, fmt.Errorf("master trade %s not found; run 'replicator poll' first", orderID)
}

func printResults(results []replicate.Result) {
	sum := replicate.Summarize(results)
	fmt.Printf("followers: %d  successful: %d  failed: %d  skipped: %d\n",
		sum.Total, sum.Successful, sum.Failed, sum.Skipped)
	for _, r := range results {
		line := fmt.Sprintf("  %-16s %s", r.FollowerID, r.Status)
		if r.FollowerOrderID != "" {
			line += fmt.Sprintf("  order=%s qty=%d", r.FollowerOrderID, r.ExecutedQuantity)
		}
		if r.Reason != "" {
			line += fmt.Sprintf("  (%s)", r.Reason)
		}
		fmt.Println(line)
	}
}
