//go:build !linux

package netinfo

import "context"

// platformDefaultRouteIPv6 has no portable implementation outside Linux's
// rtnetlink; erbium's RA lifetime-selection rule (§4.2) degrades to
// treating every interface as if it had no default route elsewhere, which
// is a conservative (lifetime=0) choice.
func platformDefaultRouteIPv6(_ context.Context) (DefaultRoute, error) {
	return DefaultRoute{Present: false}, nil
}
