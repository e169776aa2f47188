package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/campusd/internal/campus"
)

var importDSN string

var importCmd = &cobra.Command{
	Use:   "import <dir|workbook.xlsx>",
	Short: "Import campus datasets into Postgres",
	Long: `Import the campus datasets (faculty, timetable, bus_routes, events,
exam_schedule, faqs) into the configured database. The source is either a
directory of {dataset}.csv files or an .xlsx workbook with one sheet per
dataset. Tables are created when missing.

Examples:
  campusctl import ./datasets
  campusctl import --dsn postgres://campus@localhost:5432/campus?sslmode=disable campus.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dsn := importDSN
		if dsn == "" {
			dsn = cfg.Database.DSN
		}
		if dsn == "" {
			return fmt.Errorf("no database configured; set database.dsn or --dsn")
		}

		db := campus.OpenDB(dsn, cfg.Database.Password.Value(), cfg.Database.Debug)
		defer db.Close()
		source := campus.NewBunSource(db)
		if err := source.Migrate(cmd.Context()); err != nil {
			return err
		}
		return importPath(cmd.Context(), args[0], source, cmd.OutOrStdout())
	},
}

func init() {
	importCmd.Flags().StringVar(&importDSN, "dsn", "", "Postgres DSN (default database.dsn from config)")
}

// importPath imports a CSV directory or workbook into sink and prints the
// row counts per dataset.
func importPath(ctx context.Context, path string, sink campus.Sink, out io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	var stats campus.ImportStats
	switch {
	case info.IsDir():
		stats, err = campus.ImportDir(ctx, path, sink)
	case strings.EqualFold(filepath.Ext(path), ".xlsx"):
		stats, err = campus.ImportWorkbook(ctx, path, sink)
	default:
		return fmt.Errorf("%s: expected a directory or an .xlsx workbook", path)
	}
	if err != nil {
		return err
	}

	if len(stats) == 0 {
		fmt.Fprintf(out, "No datasets found in %s\n", path)
		return nil
	}
	for _, ds := range campus.Datasets {
		if n, ok := stats[ds]; ok {
			fmt.Fprintf(out, "%-14s %d rows\n", ds, n)
		}
	}
	return nil
}
