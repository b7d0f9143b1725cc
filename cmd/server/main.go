package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yahook/mcp-terminal/internal/infrastructure/config"
	"github.com/Yahook/mcp-terminal/internal/infrastructure/logging"
	"github.com/Yahook/mcp-terminal/internal/infrastructure/server"
	"github.com/Yahook/mcp-terminal/internal/terminal"
)

// Version is set at build time via ldflags.
var Version = "dev"

// exitError carries a child's exit code out of the exec subcommand.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type serveFlags struct {
	configPath string
	transport  string
	host       string
	port       int
	logLevel   string
	logDev     bool
}

func newRootCommand() *cobra.Command {
	flags := &serveFlags{}

	root := &cobra.Command{
		Use:           "mcp-terminal",
		Short:         "Terminal sessions for MCP clients",
		Long:          "mcp-terminal gives MCP clients one-shot command execution and persistent interactive shells over stdio or HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (.toml or .yaml); defaults to $"+config.FileEnv)
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&flags.logDev, "log-dev", false, "human-readable development logs")

	f := root.Flags()
	f.StringVarP(&flags.transport, "transport", "t", "", "transport: stdio or http")
	f.StringVar(&flags.host, "host", "", "HTTP listen host")
	f.IntVarP(&flags.port, "port", "p", 0, "HTTP listen port")

	root.AddCommand(newExecCommand(flags))
	return root
}

// loadConfig layers flags that were set explicitly over the loaded config.
func loadConfig(cmd *cobra.Command, flags *serveFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("transport") {
		cfg.Transport = flags.transport
	}
	if changed("host") {
		cfg.Server.Host = flags.host
	}
	if changed("port") {
		cfg.Server.Port = flags.port
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if changed("log-dev") {
		cfg.Logging.Development = flags.logDev
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Output:      cfg.Logging.Output,
	})
}

func serve(cmd *cobra.Command, flags *serveFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	srv, err := server.NewServer(cfg, logger, Version)
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
}

func newExecCommand(flags *serveFlags) *cobra.Command {
	var (
		cwd     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "exec [flags] -- COMMAND [ARG...]",
		Short: "Run one command on a pseudo-terminal and print its output",
		Long:  "Run one command on a pseudo-terminal and print its output. Arguments are\njoined with spaces and run by the login shell.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			manager := terminal.NewManager(logger)
			result, err := manager.Execute(cmd.Context(), strings.Join(args, " "), cwd, timeout)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), result.Stdout)
			if result.ExitCode != 0 {
				return &exitError{code: result.ExitCode}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory (defaults to the current directory)")
	cmd.Flags().DurationVar(&timeout, "timeout", terminal.DefaultExecTimeout, "kill the command after this long")
	return cmd
}
