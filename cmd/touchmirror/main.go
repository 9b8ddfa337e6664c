// Package main starts the touchmirror client.
package main

import (
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"
)

// main is the entrypoint for the touchmirror client.
func main() {
	var opts runOptions
	flag.BoolVar(&opts.debug, "debug", false, "Enable verbose debug logging")
	flag.StringVar(&opts.configFile, "config", "", "Optional YAML config file")
	flag.StringVar(&opts.peer, "peer", "", "Peer address to connect to on startup")
	flag.IntVar(&opts.port, "port", 0, "Peer port (defaults to PEER_PORT)")
	flag.StringVar(&opts.transport, "transport", "", "Transport override: websocket or webrtc")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}
