package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/core-tools/hsu-pidguard/pkg/config"
	"github.com/core-tools/hsu-pidguard/pkg/logging"
	"github.com/core-tools/hsu-pidguard/pkg/logging/zaplogging"
	"github.com/core-tools/hsu-pidguard/pkg/monitoring"
	"github.com/core-tools/hsu-pidguard/pkg/process"
	"github.com/core-tools/hsu-pidguard/pkg/processfile"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config   string `long:"config" short:"c" description:"Configuration file path (YAML)" default:"pidguard.yaml"`
	LogLevel string `long:"log-level" description:"Diagnostic log level, overrides log_level from the configuration"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s , ", module)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run performs one health pass and returns the process exit code.
// Failures before evaluation exit UNHEALTHY so they are never read as NOT_RUNNING.
func run(argv []string, stdout, stderr io.Writer) int {
	var opts flagOptions
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	_, err := parser.ParseArgs(argv)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return monitoring.ExitSuccess
		}
		fmt.Fprintf(stderr, "Command line flags parsing failed: %v\n", err)
		return monitoring.ExitUnhealthy
	}

	cfg, err := config.LoadConfigFromFile(opts.Config)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return monitoring.ExitUnhealthy
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	zapLogger, err := zaplogging.NewZapLogger(stderr, level)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return monitoring.ExitUnhealthy
	}
	defer zapLogger.Sync()

	logger := logging.NewLogger(
		logPrefix("healthcheck"), logging.LogFuncs{
			Debugf: zapLogger.Debugf,
			Infof:  zapLogger.Infof,
			Warnf:  zapLogger.Warnf,
			Errorf: zapLogger.Errorf,
		})

	monitor := monitoring.NewMonitor(
		monitoring.OptionsFromConfig(cfg),
		processfile.NewRegistry(cfg.PIDFilePath(), logger),
		process.NewSystem(logger),
		logger)

	verdict := monitor.Evaluate(context.Background())
	if err := verdict.WriteReport(stdout); err != nil {
		logger.Errorf("Failed to write report: %v", err)
	}

	return verdict.ExitCode
}
