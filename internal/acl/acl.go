// Package acl defines the collaborator surface the DNS ingress engine
// calls to decide whether a querying address may be served at all.
// Policy matching itself — allow/deny lists, CIDR sets, blocked-host
// engines — lives outside this core; see §4.7's "ACL refused" and "Policy
// denied" reply conditions.
package acl

import "net/netip"

// Checker decides whether remote may be served. reason is a human-readable
// explanation surfaced verbatim in the Extended DNS Error text of a
// REFUSED reply when allow is false.
type Checker interface {
	Check(remote netip.Addr) (allow bool, reason string)
}

// AllowAll is a Checker that never refuses, for callers that have no
// access-control policy configured.
type AllowAll struct{}

// Check always permits the request.
func (AllowAll) Check(netip.Addr) (allow bool, reason string) {
	return true, ""
}
