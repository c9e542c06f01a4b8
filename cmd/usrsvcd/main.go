// Command usrsvcd is the daemon launcher: a thin shell that resolves
// the configuration path, builds a supervisor.Supervisor, and runs
// its round loop until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/AdguardTeam/golibs/log"

	"github.com/usrsvc-go/usrsvc/internal/config"
	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/supervisor"
)

func defaultConfigPath() string {
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, "usrsvc.cfg")
	}
	return "usrsvc.cfg"
}

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the usrsvc configuration file")
	flag.StringVar(configPath, "c", *configPath, "shorthand for -config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("%s", err)
		os.Exit(int(exitcode.InvalidConfig))
	}

	sup := supervisor.New(*configPath, supervisor.LockDirFor(cfg.Main.Pidfile))
	os.Exit(int(sup.Run(context.Background())))
}
