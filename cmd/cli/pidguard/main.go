package main

import (
	"fmt"
	"os"

	"github.com/core-tools/hsu-pidguard/pkg/config"
	"github.com/core-tools/hsu-pidguard/pkg/errors"
	"github.com/core-tools/hsu-pidguard/pkg/logging"
	"github.com/core-tools/hsu-pidguard/pkg/logging/zaplogging"
	"github.com/core-tools/hsu-pidguard/pkg/process"
	"github.com/core-tools/hsu-pidguard/pkg/processfile"
	"github.com/core-tools/hsu-pidguard/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config   string `long:"config" short:"c" description:"Configuration file path (YAML)" default:"pidguard.yaml"`
	LogLevel string `long:"log-level" description:"Diagnostic log level, overrides log_level from the configuration"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s , ", module)
}

// app carries the state shared by all subcommands
type app struct {
	opts     flagOptions
	exitCode int

	config *config.Config
	logger logging.Logger
	sync   func() error
}

func main() {
	a := &app{}
	parser := flags.NewParser(&a.opts, flags.HelpFlag)
	parser.SubcommandsOptional = false

	parser.AddCommand("setup", "Prepare directories and a default configuration",
		"Creates the PID and log directories and writes a default configuration file if none exists.",
		&setupCommand{app: a})
	parser.AddCommand("start", "Start the managed process", "", &startCommand{app: a})
	parser.AddCommand("stop", "Stop the managed process", "", &stopCommand{app: a})
	parser.AddCommand("restart", "Restart the managed process", "", &restartCommand{app: a})
	parser.AddCommand("status", "Show whether the managed process is running", "", &statusCommand{app: a})
	parser.AddCommand("logs", "Print the managed process log", "", &logsCommand{app: a})

	_, err := parser.ParseArgs(os.Args[1:])
	if a.sync != nil {
		a.sync()
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Println(flagsErr.Message)
				os.Exit(0)
			}
			fmt.Fprintf(os.Stderr, "Command line flags parsing failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%s%v\n", supervisor.FailureMarker, err)
		os.Exit(1)
	}

	os.Exit(a.exitCode)
}

// load reads the configuration and builds the diagnostic logger
func (a *app) load(validate bool) error {
	cfg, err := config.LoadConfigFromFile(a.opts.Config)
	if err != nil {
		return err
	}
	if validate {
		if err := config.ValidateConfig(cfg); err != nil {
			return err
		}
	}
	a.config = cfg
	return a.initLogger(cfg.LogLevel)
}

func (a *app) initLogger(configLevel string) error {
	level := configLevel
	if a.opts.LogLevel != "" {
		level = a.opts.LogLevel
	}

	zapLogger, err := zaplogging.NewZapLogger(os.Stderr, level)
	if err != nil {
		return errors.NewValidationError("invalid log level", err).WithContext("level", level)
	}
	a.sync = zapLogger.Sync

	a.logger = logging.NewLogger(
		logPrefix("pidguard"), logging.LogFuncs{
			Debugf: zapLogger.Debugf,
			Infof:  zapLogger.Infof,
			Warnf:  zapLogger.Warnf,
			Errorf: zapLogger.Errorf,
		})
	return nil
}

func (a *app) newSupervisor() *supervisor.Supervisor {
	cfg := a.config
	system := process.NewSystem(a.logger)

	return supervisor.NewSupervisor(supervisor.Options{
		Name:         cfg.AppName,
		Execution:    cfg.ExecutionConfig(),
		StopTimeout:  cfg.Supervisor.StopTimeout,
		PollInterval: cfg.Supervisor.PollInterval,
		SettleDelay:  cfg.Supervisor.SettleDelay,
	}, supervisor.Dependencies{
		Registry:  processfile.NewRegistry(cfg.PIDFilePath(), a.logger),
		Control:   system,
		Inspector: system,
		Clock:     supervisor.NewRealClock(),
		Reporter:  supervisor.NewReporter(os.Stdout),
	}, a.logger)
}
