package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/splitsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   address and port of the backend server
//	-i int      online check interval in seconds
//	-d string   local database file
//	-b int      push batch size
//	-w int      concurrent pushes per batch
//	-t duration timeout of a single server call
//	-l string   log level
//	-m string   address of the metrics endpoint (off when empty)
//
// os.Args is filtered with flagx.FilterArgs so flags of other components do
// not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-d", "-b", "-w", "-t", "-l", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	fs.IntVar(&cfg.BatchSize, "b", cfg.BatchSize, "push batch size")
	fs.IntVar(&cfg.PushWorkers, "w", cfg.PushWorkers, "concurrent pushes per batch")
	fs.DurationVar(&cfg.CallTimeout, "t", cfg.CallTimeout, "timeout of a single server call")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics endpoint address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
