// Command usrsvc is the one-shot CLI front end over the supervision
// engine: start/stop/restart/status a configured program, or fan an
// "all" action out across every configured program.
package main

import (
	"os"

	"github.com/usrsvc-go/usrsvc/internal/cli"
)

func main() {
	os.Exit(int(cli.Execute()))
}
