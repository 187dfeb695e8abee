package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantumalpha/replicator/follower"
)

var followersCmd = &cobra.Command{
	Use:   "followers",
	Short: "Manage follower accounts and the master designation",
	Long: `Manage the account registry the engine replicates against.

Subcommands:
  list        - List every registered account
  add         - Register or update an account from a JSON document
  set-master  - Designate the master account

Examples:
  replicator followers list
  replicator followers add account.json
  replicator followers set-master acc-1`,
}

var followersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered account",
	Args:  cobra.NoArgs,
	RunE:  runFollowersList,
}

var followersAddCmd = &cobra.Command{
	Use:   "add <account.json>",
	Short: "Register or update an account from a JSON document",
	Args:  cobra.ExactArgs(1),
	RunE:  runFollowersAdd,
}

var followersSetMasterCmd = &cobra.Command{
	Use:   "set-master <account-id>",
	Short: "Designate the master account",
	Args:  cobra.ExactArgs(1),
	RunE:  runFollowersSetMaster,
}

func init() {
	rootCmd.AddCommand(followersCmd)
	followersCmd.AddCommand(followersListCmd)
	followersCmd.AddCommand(followersAddCmd)
	followersCmd.AddCommand(followersSetMasterCmd)
}

func runFollowersList(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()
	ctx := cmd.Context()

	accounts, err := d.followers.ListAccounts(ctx)
	if err != nil {
		return err
	}
	masterID, err := d.followers.MasterAccountID(ctx)
	if err != nil {
		return err
	}

	for _, acc := range accounts {
		role := "follower"
		if acc.ID == masterID {
			role = "master"
		}
		state := "inactive"
		if acc.Active() {
			state = "active"
		}
		fmt.Printf("  %-16s %-10s %-8s consent=%-5t multiplier=%g max_qty=%d\n",
			acc.ID, role, state, acc.Consent, acc.Risk.LotMultiplier, acc.Risk.MaxQuantity)
	}
	if masterID == "" {
		fmt.Println("no master account designated")
	}
	return nil
}

func runFollowersAdd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read account file: %w", err)
	}
	var acc follower.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return fmt.Errorf("parse account file: %w", err)
	}
	if acc.ID == "" {
		return fmt.Errorf("account id is required")
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.followers.Add(cmd.Context(), acc); err != nil {
		return err
	}
	fmt.Printf("account %s registered\n", acc.ID)
	return nil
}

func runFollowersSetMaster(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()
	ctx := cmd.Context()

	if _, err := d.followers.Get(ctx, args[0]); err != nil {
		return fmt.Errorf("account %s: %w", args[0], err)
	}
	if err := d.followers.SetMaster(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("master account set to %s\n", args[0])
	return nil
}
