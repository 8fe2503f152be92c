// Command erbium-dns is the process entry point named in §6's CLI
// surface: it loads the configuration document, builds the daemon, and
// runs the RA service and the DNS ingress service until a termination
// signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stappersg/erbium/internal/acl"
	"github.com/stappersg/erbium/internal/config"
	"github.com/stappersg/erbium/internal/daemon"
	"github.com/stappersg/erbium/internal/elog"
	"github.com/stappersg/erbium/internal/resolver"
)

func main() {
	os.Exit(run())
}

// run is the testable core of main: it returns the process exit code
// instead of calling os.Exit directly, per §6 ("0 on clean termination;
// 1 on startup or fatal runtime error").
func run() int {
	path := config.DefaultPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	doc, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err = doc.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	lvl, err := elog.ParseLevel(envOr("RUST_LOG", doc.LogLevel))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := elog.New(os.Stderr, lvl)

	// The resolver and ACL policy engines are external collaborators
	// (§6); this binary runs the ingress shell without either wired to a
	// real resolution stack or policy matcher.
	d, err := daemon.New(doc, resolver.NotAuthoritative{}, acl.AllowAll{}, log)
	if err != nil {
		log.Error("building daemon", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("erbium-dns starting", "config", path, "pid", os.Getpid())

	if err = d.Run(ctx); err != nil {
		log.Error("daemon exited with error", "error", err)
		return 1
	}

	log.Info("erbium-dns exiting")
	return 0
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
