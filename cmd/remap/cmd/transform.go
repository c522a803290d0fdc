package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transformkit/remap/internal/core/config"
	"github.com/transformkit/remap/internal/engine"
	"github.com/transformkit/remap/internal/output"
	"github.com/transformkit/remap/internal/report"
	"github.com/transformkit/remap/internal/source"
	"github.com/transformkit/remap/internal/spec"
)

var transformCmd = &cobra.Command{
	Use:   "transform <spec> <source>",
	Short: "Transform a source dataset into output tables",
	Args:  cobra.ExactArgs(2),
	RunE:  runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.Flags().StringP("output", "o", "", "output directory for per-table CSV files")
	transformCmd.Flags().String("format", "", "output format (csv, db)")
	transformCmd.Flags().String("encoding", "", "source file encoding (utf-8, utf-8-sig)")
	transformCmd.Flags().StringSlice("include-def", nil, "additional definition files, later files override")
	transformCmd.Flags().String("save-report", "", "write the run report as JSON to this path")
	transformCmd.Flags().String("db-url", "", "database URL for format db (sqlite://path or postgres://...)")
	transformCmd.Flags().Bool("parallel", false, "process output tables concurrently")
	transformCmd.Flags().BoolP("quiet", "q", false, "suppress the run summary")
}

func runTransform(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyTransformFlags(cmd, cfg)
	log := newLogger()

	includeDefs, _ := cmd.Flags().GetStringSlice("include-def")
	doc, err := spec.Load(args[0], includeDefs...)
	if err != nil {
		return fmt.Errorf("failed to load specification: %w", err)
	}

	parser, err := engine.NewParser(doc, log)
	if err != nil {
		return err
	}

	src, err := source.Open(args[1], cfg.Encoding)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	if err := parser.BindHeader(src.Fields()); err != nil {
		return err
	}
	if err := parser.ParseAll(context.Background(), src.Read, cfg.Parallel); err != nil {
		return err
	}
	log.Debug().Int("rows", parser.RowsProcessed()).Msg("source exhausted")

	rep := report.New(doc.Name, args[1])
	rep.Encoding = cfg.Encoding
	if err := writeTables(parser, cfg, doc.Name, rep); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save-report"); path != "" {
		if err := rep.Save(path); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		fmt.Fprint(cmd.OutOrStdout(), rep.Summary())
	}
	return nil
}

func applyTransformFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("output") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("format") {
		cfg.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("encoding") {
		cfg.Encoding, _ = cmd.Flags().GetString("encoding")
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DBURL, _ = cmd.Flags().GetString("db-url")
		cfg.Format = "db"
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallel, _ = cmd.Flags().GetBool("parallel")
	}
}

// writeTables sends every output table to the configured sink and records
// its counts in the report.
func writeTables(parser *engine.Parser, cfg *config.Config, base string, rep *report.Report) error {
	if cfg.Format == "db" {
		db, err := output.Open(cfg.DBURL)
		if err != nil {
			return err
		}
		defer db.Close()

		for _, name := range parser.TableNames() {
			rows, err := parser.ReadTable(name)
			if err != nil {
				return err
			}
			fields, err := parser.FieldNames(name)
			if err != nil {
				return err
			}
			if err := output.SaveTable(db, name, fields, rows); err != nil {
				return err
			}
			rep.AddTable(name, rows)
		}
		return output.RecordRun(db, rep)
	}

	for _, name := range parser.TableNames() {
		rows, err := parser.ReadTable(name)
		if err != nil {
			return err
		}
		fields, err := parser.FieldNames(name)
		if err != nil {
			return err
		}
		path := output.TablePath(cfg.OutputDir, base, name)
		if err := output.WriteCSVFile(path, fields, rows); err != nil {
			return err
		}
		rep.AddTable(name, rows)
	}
	return nil
}
