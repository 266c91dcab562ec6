package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aluiziolira/bookcatalog/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once config is loaded.
type app struct {
	configPath string
	verbose    bool
	// flags maps config keys to the flags of the running command.
	flags map[string]*pflag.Flag

	cfg    *config.Config
	logger *slog.Logger
	level  *slog.LevelVar
}

func newRootCmd() *cobra.Command {
	a := &app{flags: make(map[string]*pflag.Flag)}

	root := &cobra.Command{
		Use:          "bookcatalog",
		Short:        "Crawl the book catalog, import it into PostgreSQL and serve it over HTTP",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	a.bind("log.verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(
		newScrapeCmd(a),
		newImportCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) bind(key string, flag *pflag.Flag) {
	a.flags[key] = flag
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath, a.flags)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, a.level = newLogger(cfg.Log.Verbose)
	slog.SetDefault(a.logger)
	return nil
}

// fail logs err and returns it so cobra exits non-zero.
func (a *app) fail(msg string, err error) error {
	a.logger.Error(msg, slog.Any("error", err))
	return err
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
