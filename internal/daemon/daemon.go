// Package daemon wires the RA engine and the DNS ingress engine into the
// two co-resident services named in §1, builds their shared
// collaborators (netinfo, metrics, cookie rotation), and supplies the
// crash-loop guard §7 requires for the DNS listener loops while leaving
// the RA service unrestarted on exit. Grounded on AdGuard Home's root
// main.go/app.go wiring style, reduced to this core's two services.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/sync/errgroup"

	"github.com/stappersg/erbium/internal/acl"
	"github.com/stappersg/erbium/internal/config"
	"github.com/stappersg/erbium/internal/cookie"
	"github.com/stappersg/erbium/internal/dnsingress"
	"github.com/stappersg/erbium/internal/metrics"
	"github.com/stappersg/erbium/internal/netinfo"
	"github.com/stappersg/erbium/internal/radv"
	"github.com/stappersg/erbium/internal/ratelimit"
	"github.com/stappersg/erbium/internal/resolver"
)

// crashLoopBackoff is the pause between restarts of a DNS listener loop
// that exited with an error, per §7's "restarts the listener handler in
// an infinite loop": a bare restart-on-error without delay would spin a
// CPU core on a persistent failure like a revoked bind permission.
const crashLoopBackoff = time.Second

// Daemon is the running process: one RA service, one DNS ingress
// service, the cookie rotator's background rotation, and, if configured,
// the Prometheus HTTP exposition.
type Daemon struct {
	ra      *radv.Service
	ingress *dnsingress.Service
	cookies *cookie.Rotator
	m       *metrics.Registry
	log     *slog.Logger

	metricsAddr string
}

// New builds a Daemon from a loaded configuration document. resolve and
// checker are the resolution/ACL collaborators named in §6; a caller with
// no real resolution stack or policy engine may pass
// [resolver.NotAuthoritative] and [acl.AllowAll].
func New(
	doc *config.Document,
	resolve resolver.Handler,
	checker acl.Checker,
	log *slog.Logger,
) (d *Daemon, err error) {
	cookies, err := cookie.NewRotator(doc.CookieRotationInterval, log)
	if err != nil {
		return nil, errors.Annotate(err, "building cookie rotator: %w")
	}

	m := metrics.New()

	limiter := ratelimit.New(doc.RateLimiterCapacity, doc.RateLimiterRate)

	ra := radv.NewService(doc.RAConfig(), netinfo.NewSysProvider(), m, log)
	ingress := dnsingress.NewService(doc.DNSListenAddr, resolve, checker, limiter, cookies, m, log)

	return &Daemon{
		ra:          ra,
		ingress:     ingress,
		cookies:     cookies,
		m:           m,
		log:         log,
		metricsAddr: doc.MetricsListenAddr,
	}, nil
}

// Run starts every service and blocks until ctx is canceled or the RA
// service exits, per §7's asymmetry: the DNS ingress listener loops are
// restarted on failure, but the RA service is not. Run returns nil on a
// clean shutdown via ctx cancellation.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.cookies.Run(ctx)
		return nil
	})

	g.Go(func() error {
		err := d.ra.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return errors.Annotate(err, "ra service exited: %w")
	})

	g.Go(func() error {
		d.runIngressWithCrashLoop(ctx)
		return nil
	})

	if d.metricsAddr != "" {
		g.Go(func() error {
			return d.runMetricsServer(ctx)
		})
	}

	return g.Wait()
}

// runIngressWithCrashLoop restarts the DNS ingress engine's Run whenever
// it returns an error, per §7, until ctx is canceled.
func (d *Daemon) runIngressWithCrashLoop(ctx context.Context) {
	for {
		err := d.ingress.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			d.log.Error("dns ingress service exited, restarting", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(crashLoopBackoff):
		}
	}
}

// runMetricsServer serves the Prometheus exposition surface (§6) until
// ctx is canceled.
func (d *Daemon) runMetricsServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:    d.metricsAddr,
		Handler: d.m.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Annotate(err, "metrics server: %w")
	}
}
