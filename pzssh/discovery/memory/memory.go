package memory

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strings"
	"sync"

	"github.com/TheusHen/pzssh/pzssh/discovery"
	"github.com/TheusHen/pzssh/pzssh/identity"
)

// Store is an in-memory discovery resolver.
// It is useful for tests, examples and embedding in applications, and can be
// persisted in a known-hosts text form with Save and Load.
type Store struct {
	mu     sync.RWMutex
	peers  map[identity.PeerID]discovery.AddrInfo
	byAddr map[netip.AddrPort]identity.PeerID
}

var _ discovery.Resolver = (*Store)(nil)

func New() *Store {
	return &Store{
		peers:  map[identity.PeerID]discovery.AddrInfo{},
		byAddr: map[netip.AddrPort]identity.PeerID{},
	}
}

func copyInfo(info discovery.AddrInfo) discovery.AddrInfo {
	copyCaps := map[string]string{}
	for k, v := range info.Capabilities {
		copyCaps[k] = v
	}
	info.Capabilities = copyCaps
	return info
}

// Announce records info, replacing any earlier entry for the same PeerID
// or address.
func (s *Store) Announce(info discovery.AddrInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.peers[info.PeerID]; ok {
		delete(s.byAddr, old.Addr)
	}
	if prev, ok := s.byAddr[info.Addr]; ok && prev != info.PeerID {
		delete(s.peers, prev)
	}
	s.peers[info.PeerID] = copyInfo(info)
	s.byAddr[info.Addr] = info.PeerID
	return nil
}

func (s *Store) Lookup(peerID identity.PeerID) (discovery.AddrInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.peers[peerID]
	if !ok {
		return discovery.AddrInfo{}, discovery.ErrNotFound
	}
	return copyInfo(info), nil
}

func (s *Store) LookupAddr(addr netip.AddrPort) (discovery.AddrInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAddr[addr]
	if !ok {
		return discovery.AddrInfo{}, discovery.ErrNotFound
	}
	return copyInfo(s.peers[id]), nil
}

func (s *Store) List() ([]discovery.AddrInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]discovery.AddrInfo, 0, len(s.peers))
	for _, info := range s.peers {
		out = append(out, copyInfo(info))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Addr.String() < out[j].Addr.String()
	})
	return out, nil
}

// Save writes one "addr peerid" line per peer. Capabilities are not saved.
func (s *Store) Save(w io.Writer) error {
	infos, _ := s.List()
	bw := bufio.NewWriter(w)
	for _, info := range infos {
		if _, err := fmt.Fprintf(bw, "%s %s\n", info.Addr, info.PeerID); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads the format written by Save. Blank lines and lines starting
// with '#' are skipped.
func Load(r io.Reader) (*Store, error) {
	s := New()
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("discovery: line %d: want \"addr peerid\"", line)
		}
		addr, err := netip.ParseAddrPort(fields[0])
		if err != nil {
			return nil, fmt.Errorf("discovery: line %d: %w", line, err)
		}
		id, err := identity.ParsePeerIDHex(fields[1])
		if err != nil {
			return nil, fmt.Errorf("discovery: line %d: %w", line, err)
		}
		_ = s.Announce(discovery.AddrInfo{PeerID: id, Addr: addr})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
