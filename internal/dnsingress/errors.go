package dnsingress

import "github.com/AdguardTeam/golibs/errors"

// ErrListen is returned by [Service.Run] when a listening socket cannot be
// opened or configured. It is fatal at startup, per §7.
const ErrListen errors.Error = "dnsingress: listen"
