package config

import (
	"flag"
	"os"
	"time"

	"github.com/okatashev/nimbus/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   default server URL for new logins
//	-d string   SQLite database path
//	-r string   root directory for downloaded content
//	-t int      maximum concurrent transfers
//	-b string   transfer backend: http or s3
//	-i int      request timeout in seconds
//	-l string   log level
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-r", "-t", "-b", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "default server url")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.DataDir, "r", cfg.DataDir, "root directory for downloaded content")
	fs.IntVar(&cfg.MaxConcurrentTransfers, "t", cfg.MaxConcurrentTransfers, "maximum concurrent transfers")
	fs.StringVar(&cfg.TransferBackend, "b", cfg.TransferBackend, "transfer backend (http or s3)")
	requestTimeout := fs.Int("i", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
