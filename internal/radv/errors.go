package radv

import "github.com/AdguardTeam/golibs/errors"

// ErrUnconfiguredInterface marks an interface the unsolicited loop could
// not build any configuration for — no matching block and no host
// addresses in the global address list (§4.4, §7: "silently skip in RA
// loops; never user-visible"). Callers must not log it above debug level.
const ErrUnconfiguredInterface errors.Error = "radv: interface has no usable configuration"

// ErrListen is returned by [Service.Run] when the raw ICMPv6 socket could
// not be opened; it is fatal at startup (§7).
const ErrListen errors.Error = "radv: failed to open icmpv6 listener"
