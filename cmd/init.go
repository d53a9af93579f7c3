package cmd

import (
	"fmt"
	"log"

	"github.com/songbird-discord/songbird/songbird"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database and run migrations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			log.Fatal("Environment variable SB_DATABASE_TYPE not set (must be one of: sqlite, postgres)")
		}
		if cfg.Database == "" {
			log.Fatal(
				"Environment variable SB_DATABASE not set (must be a valid " +
					"database connection string or sqlite file path)",
			)
		}
		// Run database migrations
		db, err := songbird.CreateDB(ctx, cfg.DatabaseType, cfg.Database)
		if err != nil {
			log.Fatalf("Error creating database: %v", err)
		}
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}

		fmt.Fprintln(
			cmd.OutOrStdout(),
			"Initialization complete. You can now start the bot with the 'run' subcommand.",
		)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
