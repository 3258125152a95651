package main

import (
	"flag"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const usage = `usage: stoker [flags] <command> [command flags]

Commands:
  render    print the Dockerfile generated from a recipe
  build     build an image from a recipe
  run       launch a container from a succeeded build
  stop      stop a launched container
  ps        list launched containers
  logs      print logs from a launched container
  history   list builds from the ledger
  compose   print a docker-compose service for a succeeded build
  serve     run the HTTP build API

Flags:
  -config path   config file
  -version       print version and exit
`

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("stoker %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return ExitConfigError
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)

	command, commandArgs := args[0], args[1:]
	switch command {
	case "render":
		return cmdRender(cfg, logger, commandArgs)
	case "build":
		return cmdBuild(cfg, logger, commandArgs)
	case "run":
		return cmdRun(cfg, logger, commandArgs)
	case "stop":
		return cmdStop(cfg, logger, commandArgs)
	case "ps":
		return cmdPs(cfg, logger, commandArgs)
	case "logs":
		return cmdLogs(cfg, logger, commandArgs)
	case "history":
		return cmdHistory(cfg, logger, commandArgs)
	case "compose":
		return cmdCompose(cfg, logger, commandArgs)
	case "serve":
		return cmdServe(cfg, logger, commandArgs)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		flag.Usage()
		return ExitConfigError
	}
}
