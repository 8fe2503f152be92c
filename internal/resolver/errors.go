package resolver

import "github.com/AdguardTeam/golibs/errors"

// ErrNotAuthoritative is returned by a Handler that has no answer for the
// query's zone. The ingress engine maps it to a REFUSED reply carrying an
// EDE_NOT_AUTHORITATIVE extended error, per §4.7.
const ErrNotAuthoritative errors.Error = "not authoritative"

// ErrTimeout is returned when the upstream collaborator a Handler depends
// on did not answer in time. The ingress engine maps it to SERVFAIL with
// EDE_NO_REACHABLE_AUTHORITY, per §4.7.
const ErrTimeout errors.Error = "timed out talking to upstream server"
