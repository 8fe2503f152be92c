// Package cookie implements the DNS Cookie (RFC 7873) derivation and
// validation engine in §4.8: HMAC-SHA256 over the
// client cookie and the local/remote IP addresses, with a two-key
// rotation scheme so a client's cookie stays valid across a key
// rotation window.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"net"
)

// KeyLen is the length, in octets, of a single cookie key.
const KeyLen = 8

// ClientCookieLen is the fixed length of the client half of a DNS Cookie.
const ClientCookieLen = 8

// ServerCookieLen is the length of the server half this engine produces:
// the first 32 octets of the HMAC-SHA256 output, which is also the whole
// output, since SHA-256 produces exactly 32 octets.
const ServerCookieLen = sha256.Size

// Key is an 8-octet cookie secret.
type Key [KeyLen]byte

// Status is the result of validating a client-presented DNS Cookie.
type Status int

// Recognized validation results.
const (
	// Missing means the query carried no COOKIE option at all. Missing
	// never falls through to being treated as Good.
	Missing Status = iota
	// Bad means a client cookie was present but neither the current nor
	// the previous key's server cookie matched it.
	Bad
	// Good means the client cookie validated against the current key, or
	// fell back successfully to the previous key.
	Good
)

// Calculate computes the server cookie for clientCookie as observed on a
// connection between localIP (the address the query was received on) and
// remoteIP (the querying peer), per §4.8:
//
//	HMAC-SHA256(key, client_cookie || local_ip_octets || remote_ip_octets)
//
// IPv4 addresses contribute 4 octets and IPv6 addresses contribute 16;
// neither is normalized to the other's form.
func Calculate(clientCookie []byte, key Key, localIP, remoteIP net.IP) []byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(clientCookie)
	mac.Write(addrOctets(localIP))
	mac.Write(addrOctets(remoteIP))
	return mac.Sum(nil)
}

// addrOctets returns the 4-octet form for an IPv4 address or the 16-octet
// form for an IPv6 address.
func addrOctets(ip net.IP) []byte {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip.To16()
}

// Validate implements validate_cookie(new, old) from §4.8: a present
// client cookie is checked against the current key first, falling back
// to the previous key only if the current key does not validate it. A
// missing client cookie is always Missing, never upgraded to Good by
// either key.
func Validate(clientCookie, serverCookie []byte, newKey, oldKey Key, localIP, remoteIP net.IP) Status {
	if len(clientCookie) != ClientCookieLen {
		return Missing
	}
	if len(serverCookie) == 0 {
		return Bad
	}

	expectedNew := Calculate(clientCookie, newKey, localIP, remoteIP)
	if hmac.Equal(expectedNew, serverCookie) {
		return Good
	}

	expectedOld := Calculate(clientCookie, oldKey, localIP, remoteIP)
	if hmac.Equal(expectedOld, serverCookie) {
		return Good
	}

	return Bad
}
