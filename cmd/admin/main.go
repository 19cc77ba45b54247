// Command admin seeds identities directly into the user store. Store and
// token settings come from the same JSON file and environment variables
// as the server.
//
//	admin create-user -name "Ann" -email ann@example.com
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/jobtrack/internal/admin"
	"github.com/dmitrijs2005/jobtrack/internal/server"
	"github.com/dmitrijs2005/jobtrack/internal/server/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, admin.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadConfig()
	cfg.LogLevel = "error"

	app, err := server.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return admin.NewRunner(app.AuthService(), os.Stdin, os.Stdout).Run(context.Background(), commandArgs(os.Args[1:]))
}

// commandArgs drops the leading config flags (-c conf.json, -d DSN, ...)
// that config.LoadConfig has already consumed.
func commandArgs(args []string) []string {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if i > 0 && strings.HasPrefix(args[i-1], "-") && !strings.Contains(args[i-1], "=") {
			continue
		}
		return args[i:]
	}
	return nil
}
