package config

import (
	"flag"
	"os"
	"time"

	"github.com/carnetapp/carnet/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   data directory (default from Config)
//	-r string   remote backend DSN (default from Config)
//	-t int      sync timeout in seconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-r", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.RemoteDSN, "r", cfg.RemoteDSN, "remote backend DSN")
	syncTimeout := fs.Int("t", int(cfg.SyncTimeout.Seconds()), "sync timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncTimeout = time.Duration(*syncTimeout) * time.Second
}
