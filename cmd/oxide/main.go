// Package main contains the cli implementation of the engine. It uses the
// cobra package for the command tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"oxide/internal/config"
	"oxide/internal/core"
	"oxide/internal/machine"
	"oxide/internal/output"
	"oxide/internal/repl"
	"oxide/internal/server"
)

type rootFlags struct {
	configFile string
	root       string
}

type evalFlags struct {
	file   string
	format string
}

type serveFlags struct {
	host string
	port int
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "oxide",
		Short: "Oxide database engine",
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to oxide.toml")
	rootCmd.PersistentFlags().StringVar(&flags.root, "root", "", "Filesystem root for namespaces (overrides config)")

	rootCmd.AddCommand(replCmd(flags))
	rootCmd.AddCommand(evalCmd(flags))
	rootCmd.AddCommand(serveCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.LoadOrDefault(flags.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if flags.root != "" {
		cfg.Root = flags.root
	}
	return cfg, nil
}

func replCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return repl.New(cfg.Root, os.Stdin, os.Stdout).Run()
		},
	}
}

func evalCmd(flags *rootFlags) *cobra.Command {
	eFlags := &evalFlags{}
	cmd := &cobra.Command{
		Use:   "eval [script...]",
		Short: "Evaluate a script and print the result",
		Long: `Evaluate compiles and runs an Oxide script, either inline or from a file.

Examples:
  oxide eval 'select symbol from ns("finance.quotes.stocks") limit 5'
  oxide eval --file setup.oxide
  oxide eval --format csv 'from ns("finance.quotes.stocks")'`,
		RunE: func(_ *cobra.Command, args []string) error {
			return runEval(flags, eFlags, args)
		},
	}
	cmd.Flags().StringVarP(&eFlags.file, "file", "f", "", "Read the script from a file")
	cmd.Flags().StringVar(&eFlags.format, "format", "", "Table output format: table, csv or json")
	return cmd
}

func runEval(flags *rootFlags, eFlags *evalFlags, args []string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	script := strings.Join(args, " ")
	if eFlags.file != "" {
		data, err := os.ReadFile(eFlags.file)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		script = string(data)
	}
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("no script given; pass it inline or with --file")
	}

	_, result := machine.New(cfg.Root).Run(script)
	if table, ok := result.(core.TableValue); ok && eFlags.format != "" {
		lines, err := output.FormatRows(output.Format(eFlags.format), table.Params, table.Rows)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	}
	for _, line := range output.RenderValue(result) {
		fmt.Println(line)
	}
	if e, ok := result.(core.ErrorValue); ok {
		return fmt.Errorf("evaluation failed: %s", e.Err.Error())
	}
	return nil
}

func serveCmd(flags *rootFlags) *cobra.Command {
	sFlags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve row CRUD over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if sFlags.host != "" {
				cfg.Server.Host = sFlags.host
			}
			if sFlags.port != 0 {
				cfg.Server.Port = sFlags.port
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			fmt.Printf("serving %s on %s\n", cfg.Root, cfg.Addr())
			return server.New(cfg.Root).ListenAndServe(ctx, cfg.Addr())
		},
	}
	cmd.Flags().StringVar(&sFlags.host, "host", "", "Bind host (overrides config)")
	cmd.Flags().IntVarP(&sFlags.port, "port", "p", 0, "Bind port (overrides config)")
	return cmd
}
