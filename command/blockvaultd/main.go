// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/blockvault/blockvaultd/blockdata"
	"github.com/blockvault/blockvaultd/configuration"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, _, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		exitwithstatus.Message("%s: version: %s", program, version)
	}

	if len(options["help"]) > 0 {
		exitwithstatus.Message("usage: %s [--help] [--verbose] [--quiet] --config-file=FILE", program)
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: exactly one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := configuration.GetConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// start logging
	logConfiguration := logger.Configuration{
		Directory: theConfiguration.Logging.Directory,
		File:      theConfiguration.Logging.File,
		Size:      theConfiguration.Logging.Size,
		Count:     theConfiguration.Logging.Count,
		Console:   theConfiguration.Logging.Console || len(options["verbose"]) > 0,
		Levels:    theConfiguration.Logging.Levels,
	}
	if err = logger.Initialise(logConfiguration); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	dbType, err := theConfiguration.DBTypeValue()
	if nil != err {
		exitwithstatus.Message("%s: db_type error: %s", program, err)
	}

	log.Infof("chain: %s", theConfiguration.Chain)
	log.Infof("database: %q", theConfiguration.Database.Directory)
	log.Infof("block files: %q", theConfiguration.BlockFileDirectory)

	// start the block data manager
	log.Info("initialise block data manager")
	manager, err := blockdata.NewManager(blockdata.Config{
		ChainName:    theConfiguration.Chain,
		DBDirectory:  theConfiguration.Database.Directory,
		BlockFileDir: theConfiguration.BlockFileDirectory,
		DBType:       dbType,
	})
	if nil != err {
		log.Criticalf("manager create error: %s", err)
		exitwithstatus.Message("%s: manager create error: %s", program, err)
	}

	inject := blockdata.NewInject()
	err = manager.Start(&logCallback{log: logger.New("callback")}, inject)
	if nil != err {
		log.Criticalf("manager start error: %s", err)
		exitwithstatus.Message("%s: manager start error: %s", program, err)
	}

	// wait for termination
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)

	log.Info("shutting down…")
	manager.ShutdownAndWait()
}

// logCallback - report worker events into the log
type logCallback struct {
	log *logger.L
}

func (c *logCallback) Run(action blockdata.Action, height uint32, info string) {
	switch action {
	case blockdata.ActionFailure:
		c.log.Criticalf("worker failure: %s", info)
	case blockdata.ActionNewBlock:
		c.log.Infof("new block: %d  %s", height, info)
	default:
		c.log.Infof("%s: height: %d", action, height)
	}
}

func (c *logCallback) Progress(phase blockdata.Phase, walletIDs []string, fraction float64, secondsRemaining uint32, numeric uint32) {
	c.log.Infof("%s: %.1f%%", phase, fraction*100)
}
