package coordinator

import (
	"net"
	"net/url"

	"github.com/signaloracle/mpccore/pkg/mpcerr"
)

// Peer is one entry from the external peer registry (the Bittensor
// metagraph abstraction, out of scope for this core beyond its shape):
// an x-coordinate, a base URL, and whether the registry currently flags
// it as an active validator.
type Peer struct {
	X          int
	BaseURL    string
	IsActive   bool
}

// DiscoverPeers filters the full metagraph down to peers this coordinator
// may actually dial: active, not self, and reachable only via a public,
// routable address. This is the SSRF guard required by spec.md §4.H:
// loopback, link-local, and RFC1918 addresses are rejected by default.
func DiscoverPeers(metagraph []Peer, selfX int) ([]Peer, error) {
	out := make([]Peer, 0, len(metagraph))
	for _, p := range metagraph {
		if !p.IsActive || p.X == selfX {
			continue
		}
		if err := ValidatePeerURL(p.BaseURL); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ValidatePeerURL rejects a peer base URL with no host, or whose host is
// "localhost" or an IP literal in a loopback, link-local, or private
// (RFC1918) range. Other hostnames are accepted without DNS resolution.
func ValidatePeerURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return mpcerr.Wrap(mpcerr.InvalidInput, "malformed peer URL", err)
	}
	host := u.Hostname()
	if host == "" {
		return mpcerr.New(mpcerr.InvalidInput, "peer URL has no host")
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// A hostname rather than a literal IP: DNS resolution happens at
		// dial time. Reject the well-known local hostnames outright; a
		// full anti-DNS-rebinding defense is out of scope for this core.
		if host == "localhost" {
			return mpcerr.New(mpcerr.InvalidInput, "peer URL resolves to localhost")
		}
		return nil
	}
	if isUnroutablePeerIP(ip) {
		return mpcerr.New(mpcerr.InvalidInput, "peer URL resolves to a non-public address")
	}
	return nil
}

func isUnroutablePeerIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, block := range privateV4Blocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

var privateV4Blocks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, len(cidrs))
	for i, c := range cidrs {
		_, block, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out[i] = block
	}
	return out
}
