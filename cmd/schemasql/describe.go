package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koustreak/schemasql/internal/database"
)

var describeCmd = &cobra.Command{
	Use:   "describe [table...]",
	Short: "Show the columns and keys of tables in the database",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		tables, err := database.InspectTables(ctx, db, args...)
		if err != nil {
			return err
		}
		for _, t := range tables {
			printTable(cmd.OutOrStdout(), t)
		}
		return nil
	},
}

func printTable(out io.Writer, t *database.TableInfo) {
	fmt.Fprintf(out, "%s\n", t.Name)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range t.Columns {
		var flags []string
		if c.IsPrimary {
			flags = append(flags, "primary key")
		}
		if !c.Nullable {
			flags = append(flags, "not null")
		}
		if c.IsUnique {
			flags = append(flags, "unique")
		}
		if c.Default != nil {
			flags = append(flags, "default "+*c.Default)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", c.Name, c.DataType, strings.Join(flags, ", "))
	}
	_ = w.Flush()
	for _, fk := range t.ForeignKeys {
		fmt.Fprintf(out, "  %s -> %s(%s)\n", fk.Column, fk.RefTable, fk.RefColumn)
	}
	fmt.Fprintln(out)
}
