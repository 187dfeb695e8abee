package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantumalpha/replicator/ledger"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "List order mappings",
	Long: `List the master-to-follower order mappings, newest first.

Examples:
  replicator mappings
  replicator mappings --master M-1001
  replicator mappings --follower acc-7 --status ACTIVE`,
	Args: cobra.NoArgs,
	RunE: runMappings,
}

var (
	mappingsMaster   string
	mappingsFollower string
	mappingsStatus   string
	mappingsLimit    int
	mappingsOffset   int
)

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.Flags().StringVar(&mappingsMaster, "master", "", "filter by master order id")
	mappingsCmd.Flags().StringVar(&mappingsFollower, "follower", "", "filter by follower account id")
	mappingsCmd.Flags().StringVar(&mappingsStatus, "status", "", "filter by status (PENDING, ACTIVE, FAILED, CANCELLED)")
	mappingsCmd.Flags().IntVar(&mappingsLimit, "limit", 50, "page size")
	mappingsCmd.Flags().IntVar(&mappingsOffset, "offset", 0, "page offset")
}

func runMappings(cmd *cobra.Command, args []string) error {
	status := ledger.Status(strings.ToUpper(mappingsStatus))
	switch status {
	case "", ledger.StatusPending, ledger.StatusActive, ledger.StatusFailed, ledger.StatusCancelled:
	default:
		return fmt.Errorf("invalid status %q", mappingsStatus)
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	mappings, total, err := d.store.ListMappings(cmd.Context(), ledger.MappingFilter{
		MasterOrderID: mappingsMaster,
		FollowerID:    mappingsFollower,
		Status:        status,
		Limit:         mappingsLimit,
		Offset:        mappingsOffset,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d of %d mappings\n", len(mappings), total)
	for _, m := range mappings {
		line := fmt.Sprintf("  %-26s %-20s %-16s %-9s %-10s %s qty=%d/%d",
			m.ID, m.MasterOrderID, m.FollowerID, m.Status, m.Symbol, m.Side,
			m.ExecutedQuantity, m.RequestedQuantity)
		if m.FollowerOrderID != "" {
			line += " order=" + m.FollowerOrderID
		}
		if m.ErrorMessage != "" {
			line += " error=" + m.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}
