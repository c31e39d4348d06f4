// Package discovery maps PeerIDs to the addresses they can be reached at.
// Dialing through a Resolver pins the remote host key, in the manner of an
// SSH known_hosts file.
package discovery

import (
	"errors"
	"net/netip"

	"github.com/TheusHen/pzssh/pzssh/identity"
)

var (
	ErrNotFound = errors.New("discovery: peer not found")
)

// AddrInfo is the minimal set of information discovery provides.
// The application is responsible for deciding how to use capabilities.
type AddrInfo struct {
	PeerID       identity.PeerID
	Addr         netip.AddrPort
	Capabilities map[string]string
}

// Resolver is a generic discovery interface.
// Implementations can be backed by a known-hosts file, DNS, bootstrap lists, etc.
type Resolver interface {
	Announce(info AddrInfo) error
	Lookup(peerID identity.PeerID) (AddrInfo, error)
	// LookupAddr returns the peer last announced at addr.
	LookupAddr(addr netip.AddrPort) (AddrInfo, error)
	List() ([]AddrInfo, error)
}
