package main

import (
	"fmt"

	"holewatch/internal/db"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reputationCmd)
	reputationCmd.AddCommand(reputationRebuildCmd)
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)

	reputationRebuildCmd.Flags().Uint("user", 0, "Only rebuild this user's snapshot")
	userAddCmd.Flags().String("username", "", "Display name")
	userAddCmd.Flags().String("email", "", "Unique email")
	userAddCmd.Flags().Bool("admin", false, "Grant the admin role")
	_ = userAddCmd.MarkFlagRequired("username")
	_ = userAddCmd.MarkFlagRequired("email")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		if err := db.Migrate(a.db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database migrated")
		return nil
	},
}

var reputationCmd = &cobra.Command{
	Use:   "reputation",
	Short: "Maintain reputation snapshots",
}

var reputationRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute reputation snapshots from the points log",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		ledger := a.services(nil).Ledger

		userID, _ := cmd.Flags().GetUint("user")
		if userID != 0 {
			snapshot, err := ledger.Rebuild(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d: %d points (%s)\n", snapshot.UserID, snapshot.Total, snapshot.Tier)
			return nil
		}

		n, err := ledger.RebuildAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %d snapshots\n", n)
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users (development only, production users come from the auth system)",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		admin, _ := cmd.Flags().GetBool("admin")

		user, err := a.services(nil).Users.Create(cmd.Context(), username, email, admin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s, %s)\n", user.ID, user.Username, user.Role)
		return nil
	},
}
