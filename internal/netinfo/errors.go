package netinfo

import "github.com/AdguardTeam/golibs/errors"

// ErrNoSuchInterface is wrapped by [Provider.InterfaceByIndex] when asked
// about an interface index the host does not have.
const ErrNoSuchInterface errors.Error = "netinfo: no such interface"
