// Package main starts the touchmirror reference peer.
package main

import (
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"
)

// main is the entrypoint for the reference peer.
func main() {
	var opts runOptions
	flag.BoolVar(&opts.debug, "debug", false, "Enable verbose debug logging")
	flag.StringVar(&opts.configFile, "config", "", "Optional YAML config file")
	flag.StringVar(&opts.listen, "listen", "", "Listen address override")
	flag.BoolVar(&opts.welcome, "welcome", false, "Answer handshakes with the mobile welcome envelope")
	flag.BoolVar(&opts.noVideo, "no-video", false, "Serve input only, without ffmpeg capture")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Log planned input instead of injecting it")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}
