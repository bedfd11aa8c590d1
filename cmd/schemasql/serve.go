package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/koustreak/schemasql/internal/api"
	"github.com/koustreak/schemasql/internal/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve CRUD over the compiled tables",
	Long: `Serve CRUD over HTTP. Tables are compiled from the schema directory
the first time they are requested; --precompile compiles the whole
directory before listening.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var flagPrecompile bool

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().BoolVar(&flagPrecompile, "precompile", false, "compile every schema before listening")
	_ = v.BindPFlag(config.KeyServerAddr, serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, db, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if flagPrecompile {
		if _, err := cat.CompileDir(ctx); err != nil {
			log.WarnWith("some schemas failed to compile", err, nil)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(cat, log).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.InfoWith("listening", map[string]any{"addr": srv.Addr, "schemas": cfg.Schemas.Dir})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
