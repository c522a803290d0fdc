package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transformkit/remap/internal/core/config"
	"github.com/transformkit/remap/internal/output"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded transformation runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().String("db-url", "", "database URL holding the runs table (sqlite://path or postgres://...)")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dbURL := cfg.DBURL
	if cmd.Flags().Changed("db-url") {
		dbURL, _ = cmd.Flags().GetString("db-url")
	}
	if dbURL == "" {
		return fmt.Errorf("no database URL: set --db-url or remap.db_url")
	}

	db, err := output.Open(dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := output.ListRuns(db)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %s: %d/%d valid  (%s)\n",
			r.CreatedAt, r.RunID, r.SpecName, r.TableName, r.Valid, r.Total, r.SourceFile)
	}
	return nil
}
