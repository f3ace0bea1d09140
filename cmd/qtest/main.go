package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Qthai16/lab0-queue/utils"
	"github.com/sevlyar/go-daemon"
)

type CmdlineOpts struct {
	Script     string
	ConfigPath string
	LogPath    string
	Daemon     bool
	Color      bool
	Verbose    int
	Malloc     int
	Hash       string
}

var cmdLineOpts = CmdlineOpts{}

func flagInit() {
	flag.StringVar(&cmdLineOpts.Script, "f", "", "read commands from file instead of stdin")
	flag.StringVar(&cmdLineOpts.ConfigPath, "config", "", "toml config file")
	flag.StringVar(&cmdLineOpts.LogPath, "log", "", "log file path")
	flag.BoolVar(&cmdLineOpts.Daemon, "daemon", false, "run the script in background, requires -f and -log")
	flag.BoolVar(&cmdLineOpts.Color, "color", false, "colored log output")
	flag.IntVar(&cmdLineOpts.Verbose, "v", 2, "verbosity 0..3")
	flag.IntVar(&cmdLineOpts.Malloc, "malloc", 0, "percent of allocations that fail")
	flag.StringVar(&cmdLineOpts.Hash, "hash", "murmur32", "snapshot checksum hash")
}

// loadConfig reads the config file, then applies flags given explicitly.
func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(cmdLineOpts.ConfigPath)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Verbose = cmdLineOpts.Verbose
		case "malloc":
			cfg.FailProbability = cmdLineOpts.Malloc
		case "hash":
			cfg.Hash = cmdLineOpts.Hash
		}
	})
	return cfg, cfg.Adjust()
}

func run(cfg *Config) int {
	if len(cmdLineOpts.LogPath) > 0 && !cmdLineOpts.Daemon {
		f, err := utils.OpenLogFile(cmdLineOpts.LogPath)
		if err != nil {
			utils.LogErro("%v", err)
			return 1
		}
		defer f.Close()
	}

	var in io.Reader = os.Stdin
	if len(cmdLineOpts.Script) > 0 {
		f, err := os.Open(cmdLineOpts.Script)
		if err != nil {
			utils.LogErro("failed to open script: %v", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs, stop := utils.WaitTerminate()
	defer stop()
	go func() {
		select {
		case s := <-sigs:
			utils.LogWarn("got signal %v, stopping", s)
			cancel()
		case <-ctx.Done():
		}
	}()

	var out io.Writer = os.Stdout
	if cmdLineOpts.Daemon {
		// stdout of a daemon is /dev/null, keep the transcript with the log
		out = os.Stderr
	}
	console := NewConsole(cfg, out)
	if err := console.Run(ctx, in); err != nil {
		utils.LogErro("run stopped: %v", err)
	}
	closeErr := console.Close()
	if n := console.Failed(); n > 0 || closeErr != nil {
		utils.LogErro("%d commands failed", n)
		return 1
	}
	utils.LogInfo("all commands passed")
	return 0
}

func realMain() int {
	flagInit()
	flag.Parse()
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 2
	}
	utils.SetColorPrint(cmdLineOpts.Color)
	utils.SetLogLevel(cfg.Verbose)

	if cmdLineOpts.Daemon {
		if len(cmdLineOpts.Script) == 0 || len(cmdLineOpts.LogPath) == 0 {
			utils.LogErro("-daemon needs both -f and -log")
			return 2
		}
		utils.LogInfo("running script %s as daemon", cmdLineOpts.Script)
		cntxt := &daemon.Context{
			PidFileName: fmt.Sprintf("/tmp/qtest.%d.pid", os.Getpid()),
			PidFilePerm: 0644,
			LogFileName: cmdLineOpts.LogPath,
			LogFilePerm: 0640,
			WorkDir:     "./",
		}
		d, err := cntxt.Reborn()
		if err != nil {
			utils.LogErro("failed to run as daemon: %v", err)
			return 1
		}
		if d != nil { // parent process
			return 0
		}
		defer cntxt.Release()
		// the child writes its log through the redirected stderr
		utils.SetLogOutput(os.Stderr)
	}
	return run(cfg)
}

func main() {
	os.Exit(realMain())
}
