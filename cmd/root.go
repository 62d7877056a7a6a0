/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/allbin/go-serialhost/internal/config"
	"github.com/allbin/go-serialhost/internal/logging"
	"github.com/allbin/go-serialhost/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	v         = viper.New()
	appConfig *config.Config
	logger    = slog.New(slog.DiscardHandler)
	closeLog  = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serialhost",
	Short: "Serial port sessions for embedding hosts",
	Long: `serialhost opens serial ports on behalf of a host and drives them through
small integer handles.

The subcommands exercise the same session layer a host uses: enumerate
ports, read and drive modem lines, send and capture data, or run raw
operations interactively with the shell command.

Configuration is read from $HOME/.serialhost.yaml (or --config) and from
SERIALHOST_* environment variables, e.g. SERIALHOST_LOG_LEVEL=debug.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg

		l, closer, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		logger, closeLog = l, closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.serialhost.yaml)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text, json")
	flags.String("log-output", "", "Log output: stderr, stdout or a file path")

	for key, flag := range map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
		"log.output": "log-output",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// newDispatcher returns a session dispatcher configured from the loaded
// configuration
func newDispatcher() (*session.Dispatcher, error) {
	opts := []session.Option{session.WithLogger(logger)}
	if appConfig != nil {
		portOpts, err := appConfig.PortOptions()
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithPortOptions(portOpts...))
	}
	return session.NewDispatcher(opts...), nil
}

// openSession opens portPath on a fresh dispatcher. The returned release
// function closes every handle of the dispatcher.
func openSession(portPath string, baud int) (*session.Dispatcher, session.Handle, func(), error) {
	d, err := newDispatcher()
	if err != nil {
		return nil, 0, nil, err
	}
	h, err := d.Open(portPath, baud)
	if err != nil {
		return nil, 0, nil, err
	}
	release := func() {
		if err := d.CloseAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return d, h, release, nil
}
