package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/schemasql/internal/compiler"
	"github.com/koustreak/schemasql/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Compile schema documents as they appear in the schema directory",
	Long: `Compile the schema directory, then compile every *.json document
created or written in it until interrupted. A table name already
compiled keeps its first definition.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, db, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := cat.CompileDir(ctx)
	report(cmd.OutOrStdout(), results)
	if err != nil {
		log.WarnWith("some schemas failed to compile", err, nil)
	}

	w := watch.New(cfg.Schemas.Dir, watch.WithLogger(log))
	return w.Run(ctx, func(ctx context.Context, path string) {
		out, err := cat.CompileFile(ctx, path)
		if err != nil {
			log.ErrorWith("schema compilation failed", err, map[string]any{"schema": path})
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			return
		}
		report(cmd.OutOrStdout(), []*compiler.Compilation{out})
	})
}
