package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cbrownsey/wrenlet"
	"github.com/cbrownsey/wrenlet/runtime"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "wrenlet",
		Short:         "Run Wren scripts on libwren or a WebAssembly build of Wren",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	run := &cobra.Command{
		Use:   "run <script.wren | ->",
		Short: "Interpret a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(configPath, cmd.Flags())
			if err != nil {
				return &usageError{err: err}
			}
			return runScript(cmd, opts, args[0])
		},
	}
	flags := run.Flags()
	flags.String("runtime", runtime.RuntimeTypeCWren, "backend: "+fmt.Sprint(runtime.List()))
	flags.String("guest", "", "path to the Wren wasm guest (wazero runtime)")
	flags.String("mode", runtime.RuntimeModeInterpreter, "wazero mode: interpreter or compiled")
	flags.String("output", "stdout", "where System.print goes: stdout, stderr or log")
	flags.String("module", "main", "module name of the script")
	flags.String("modules-dir", "", "directory imports are loaded from (default: the script's directory)")

	runtimes := &cobra.Command{
		Use:   "runtimes",
		Short: "List the available backends",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range runtime.List() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}

	root.AddCommand(run, runtimes)
	return root
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, &usageError{err: fmt.Errorf("invalid log level: %w", err)}
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func runScript(cmd *cobra.Command, opts options, script string) error {
	logger, err := newLogger(opts.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var (
		source []byte
		dir    = "."
	)
	if script == "-" {
		source, err = io.ReadAll(cmd.InOrStdin())
	} else {
		source, err = os.ReadFile(script)
		dir = filepath.Dir(script)
	}
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	if opts.ModulesDir != "" {
		dir = opts.ModulesDir
	}

	cfg := opts.VM
	cfg.Logger = logger
	cfg.Loader = wrenlet.FSLoader{FS: os.DirFS(dir)}
	switch opts.Output {
	case "stderr":
		cfg.Output = cmd.ErrOrStderr()
	case "log":
		cfg.Output = wrenlet.NewLogOutput(logger, zapcore.InfoLevel)
	default:
		cfg.Output = cmd.OutOrStdout()
	}

	vm, err := wrenlet.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	logger.Debug("running script",
		zap.String("script", script),
		zap.String("module", opts.Module),
		zap.String("runtime", cfg.Runtime.Type))

	runErr := vm.Interpret(cmd.Context(), opts.Module, string(source))
	if err := vm.Close(); err != nil {
		logger.Warn("failed to close vm", zap.Error(err))
	}
	return runErr
}
