// Command eventpipe serves the event publishing API.
//
//	eventpipe -config /etc/eventpipe/eventpipe.yaml
//
// Every setting can also be given as an EVENTPIPE_* environment variable; see
// package config.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/aalemi-dev/eventpipe/config"
)

func main() {
	configPath := flag.String("config", os.Getenv("EVENTPIPE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eventpipe: %v\n", err)
		os.Exit(1)
	}

	fx.New(appOptions(cfg)).Run()
}
