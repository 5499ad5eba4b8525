package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrause/deskd/internal/database"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the support database schema and load demo data",
	Long: `Creates the customers and tickets tables if needed and replaces their
contents with a small demo dataset. Existing rows are wiped.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// runSeed talks to SQLite only; no model provider is initialized.
func runSeed(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := database.Seed(db); err != nil {
		return err
	}

	fmt.Printf("Seeded demo data into %s\n", cfg.DatabasePath)
	return nil
}
