package main

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/schemasql/internal/config"
	"github.com/koustreak/schemasql/internal/logger"
)

var (
	// flagConfig is the YAML config file set by --config.
	flagConfig string

	// v carries SCHEMASQL_* variables and the flags bound below.
	v = config.NewViper()

	// cfg and log are populated by PersistentPreRunE.
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "schemasql",
	Short: "Compile JSON Schema documents into SQL tables",
	Long: `schemasql turns JSON Schema documents into relational tables,
one junction table per $ref property, and serves CRUD over the
compiled tables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "YAML config file")
	pf.String("driver", "", "database driver: sqlite, mysql or postgres")
	pf.String("dsn", "", "database connection string")
	pf.String("schemas", "", "schema directory, http(s) URL or s3://bucket/prefix")
	pf.Bool("strict-refs", false, "fail on unresolvable $ref instead of skipping the property")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "json or console")

	for flag, key := range map[string]string{
		"driver":      config.KeyDatabaseDriver,
		"dsn":         config.KeyDatabaseDSN,
		"schemas":     config.KeySchemasDir,
		"strict-refs": config.KeySchemasStrictRefs,
		"log-level":   config.KeyLogLevel,
		"log-format":  config.KeyLogFormat,
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(describeCmd)
}

// setup loads the config file, overlays environment and flags and builds
// the logger.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	c.Overlay(v)
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	log = logger.New(cfg.LoggerConfig())
	logger.SetGlobal(log)
	return nil
}
