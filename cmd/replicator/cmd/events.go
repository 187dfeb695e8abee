package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantumalpha/replicator/ledger"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List audit events",
	Long: `List the audit trail of fan-out operations, newest first.

Examples:
  replicator events
  replicator events --master M-1001
  replicator events --type EXIT`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

var (
	eventsMaster string
	eventsType   string
	eventsLimit  int
	eventsOffset int
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVar(&eventsMaster, "master", "", "filter by master order id")
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "filter by event type (PLACE, MODIFY, EXIT, CANCEL)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "page size")
	eventsCmd.Flags().IntVar(&eventsOffset, "offset", 0, "page offset")
}

func runEvents(cmd *cobra.Command, args []string) error {
	et := ledger.EventType(strings.ToUpper(eventsType))
	switch et {
	case "", ledger.EventPlace, ledger.EventModify, ledger.EventExit, ledger.EventCancel:
	default:
		return fmt.Errorf("invalid event type %q", eventsType)
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	events, total, err := d.store.ListEvents(cmd.Context(), ledger.EventFilter{
		MasterOrderID: eventsMaster,
		EventType:     et,
		Limit:         eventsLimit,
		Offset:        eventsOffset,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d of %d events\n", len(events), total)
	for _, ev := range events {
		fmt.Printf("  %s %-7s %-20s %-10s ok=%d fail=%d skip=%d of %d\n",
			ev.ProcessedAt.Format("2006-01-02 15:04:05"), ev.EventType,
			ev.MasterOrderID, ev.Symbol, ev.Successful, ev.Failed, ev.Skipped, ev.Total)
	}
	return nil
}
