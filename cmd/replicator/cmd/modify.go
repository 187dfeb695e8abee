package cmd

import (
	"github.com/spf13/cobra"
)

var modifyCmd = &cobra.Command{
	Use:   "modify <master-order-id>",
	Short: "Record a master order modification against its mappings",
	Long: `Record that the master order was modified. Active mappings are touched and
a MODIFY audit event is written; follower orders are not amended at the
venue.`,
	Args: cobra.ExactArgs(1),
	RunE: runModify,
}

var (
	modifyQuantity int64
	modifyPrice    float64
)

func init() {
	rootCmd.AddCommand(modifyCmd)
	modifyCmd.Flags().Int64Var(&modifyQuantity, "quantity", 0, "new master quantity")
	modifyCmd.Flags().Float64Var(&modifyPrice, "price", 0, "new master price")
}

func runModify(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	results, err := d.engine.ModifySync(cmd.Context(), args[0], modifyQuantity, modifyPrice)
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}
