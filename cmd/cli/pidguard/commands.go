package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/core-tools/hsu-pidguard/pkg/config"
	"github.com/core-tools/hsu-pidguard/pkg/logtail"
	"github.com/core-tools/hsu-pidguard/pkg/processfile"
)

const followInterval = 500 * time.Millisecond

type setupCommand struct {
	app *app

	Scenario string `long:"scenario" description:"Deployment scenario used to seed the paths section of a new configuration" choice:"system" choice:"user" choice:"session" choice:"development" default:"user"`
	AppName  string `long:"app-name" description:"Application name for a new configuration" default:"hsu-pidguard"`
}

func (c *setupCommand) Execute(args []string) error {
	a := c.app

	if _, err := os.Stat(a.opts.Config); os.IsNotExist(err) {
		cfg := config.DefaultConfigForScenario(c.AppName, c.Scenario)
		if err := config.WriteConfigFile(a.opts.Config, cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration: %s (scenario: %s)\n", a.opts.Config, c.Scenario)
		fmt.Println("Set process.executable_path before running start")
	} else {
		fmt.Printf("Using existing configuration: %s\n", a.opts.Config)
	}

	if err := a.load(false); err != nil {
		return err
	}

	for _, path := range []string{a.config.PIDFilePath(), a.config.LogFilePath()} {
		if err := processfile.ValidateDirectory(path); err != nil {
			return err
		}
		a.logger.Debugf("Directory ready, path: %s", path)
	}

	fmt.Printf("PID file: %s\n", a.config.PIDFilePath())
	fmt.Printf("Log file: %s\n", a.config.LogFilePath())
	return nil
}

type startCommand struct {
	app *app
}

func (c *startCommand) Execute(args []string) error {
	if err := c.app.load(true); err != nil {
		return err
	}
	_, err := c.app.newSupervisor().Start(context.Background())
	return err
}

type stopCommand struct {
	app *app
}

func (c *stopCommand) Execute(args []string) error {
	if err := c.app.load(true); err != nil {
		return err
	}
	_, err := c.app.newSupervisor().Stop(context.Background())
	return err
}

type restartCommand struct {
	app *app
}

func (c *restartCommand) Execute(args []string) error {
	if err := c.app.load(true); err != nil {
		return err
	}
	_, err := c.app.newSupervisor().Restart(context.Background())
	return err
}

type statusCommand struct {
	app *app
}

func (c *statusCommand) Execute(args []string) error {
	if err := c.app.load(true); err != nil {
		return err
	}
	status, err := c.app.newSupervisor().Status(context.Background())
	if err != nil {
		return err
	}
	c.app.exitCode = status.ExitCode()
	return nil
}

type logsCommand struct {
	app *app

	Lines  int  `long:"lines" short:"n" description:"Number of trailing lines to print" default:"50"`
	Follow bool `long:"follow" short:"f" description:"Keep printing lines as they are appended"`
}

func (c *logsCommand) Execute(args []string) error {
	if err := c.app.load(false); err != nil {
		return err
	}
	path := c.app.config.LogFilePath()

	lines, err := logtail.LastLines(path, c.Lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	if !c.Follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.app.logger.Debugf("Following log file, path: %s", path)
	return logtail.Follow(ctx, path, os.Stdout, followInterval)
}
