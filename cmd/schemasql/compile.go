package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/koustreak/schemasql/internal/compiler"
)

var flagDryRun bool

var compileCmd = &cobra.Command{
	Use:   "compile [file.json | dir]",
	Short: "Create the tables described by schema documents",
	Long: `Compile one schema document, or every *.json document of a directory
(the configured schema directory when no argument is given), and create
the resulting tables. With --dry-run the DDL is printed instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the DDL without touching the database")
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, file := cfg.Schemas.Dir, ""
	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		if info.IsDir() {
			dir = args[0]
		} else {
			dir, file = filepath.Dir(args[0]), args[0]
		}
	}

	if flagDryRun {
		return dryRun(ctx, cmd.OutOrStdout(), dir, file)
	}

	cfg.Schemas.Dir = dir
	cat, db, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var results []*compiler.Compilation
	if file != "" {
		out, err := cat.CompileFile(ctx, file)
		if err != nil {
			return err
		}
		results = append(results, out)
	} else {
		results, err = cat.CompileDir(ctx)
		if err != nil {
			report(cmd.OutOrStdout(), results)
			return partialError{fmt.Errorf("%d schema(s) failed: %w", len(multierr.Errors(err)), err)}
		}
	}
	report(cmd.OutOrStdout(), results)
	return nil
}

// dryRun prints the DDL of every document without a database connection.
func dryRun(ctx context.Context, w io.Writer, dir, file string) error {
	d, err := cfg.DatabaseConfig().Dialect()
	if err != nil {
		return err
	}
	loader, err := newLoader(ctx, dir)
	if err != nil {
		return err
	}
	comp := compiler.New(nil, loader,
		compiler.WithDialect(d),
		compiler.WithDryRun(true),
		compiler.WithStrictReferences(cfg.Schemas.StrictRefs),
		compiler.WithLogger(log),
	)

	locs := []string{file}
	if file == "" {
		if locs, err = loader.List(ctx); err != nil {
			return err
		}
	}

	var failed error
	for _, loc := range locs {
		doc, err := loader.LoadLocation(ctx, loc)
		if err == nil {
			var out *compiler.Compilation
			if out, err = comp.Compile(ctx, doc); err == nil {
				fmt.Fprintf(w, "-- %s\n", loc)
				for _, stmt := range out.Statements {
					fmt.Fprintf(w, "%s;\n", stmt)
				}
				fmt.Fprintln(w)
				continue
			}
		}
		log.ErrorWith("schema compilation failed", err, map[string]any{"schema": loc})
		failed = multierr.Append(failed, fmt.Errorf("%s: %w", loc, err))
	}
	if failed != nil {
		return partialError{failed}
	}
	return nil
}

func report(w io.Writer, results []*compiler.Compilation) {
	for _, out := range results {
		if out.Table == nil {
			continue
		}
		names := make([]string, len(out.Tables))
		for i, t := range out.Tables {
			names[i] = t.Name
		}
		if len(names) == 0 {
			fmt.Fprintf(w, "%s: up to date\n", out.Table.Name)
		} else {
			fmt.Fprintf(w, "%s: created %s\n", out.Table.Name, strings.Join(names, ", "))
		}
		for _, s := range out.Skipped {
			fmt.Fprintf(w, "  skipped %s.%s (%s): %v\n", s.Table, s.Property, s.Ref, s.Err)
		}
	}
}
