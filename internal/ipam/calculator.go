package ipam

import (
	"fmt"
	"net/netip"

	"github.com/netadmind/netadmind/internal/shared"
)

// SubnetInfo describes a single IPv4 network.
type SubnetInfo struct {
	Network      string `json:"network"`
	Netmask      string `json:"netmask"`
	Broadcast    string `json:"broadcast"`
	FirstHost    string `json:"first_host"`
	LastHost     string `json:"last_host"`
	TotalHosts   int    `json:"total_hosts"`
	UsableHosts  int    `json:"usable_hosts"`
	PrefixLength int    `json:"prefix_length"`
}

// SubnetSplit is the result of dividing a network into equal subnets.
type SubnetSplit struct {
	OriginalNetwork string   `json:"original_network"`
	Subnets         []string `json:"subnets"`
	SubnetCount     int      `json:"subnet_count"`
	HostsPerSubnet  int      `json:"hosts_per_subnet"`
}

// SubnetMerge is the smallest supernet covering a set of networks.
type SubnetMerge struct {
	Subnets       []string `json:"subnets"`
	MergedNetwork string   `json:"merged_network"`
}

func parseIPv4Prefix(network string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(network)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: invalid network %q", shared.ErrValidation, network)
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%w: only IPv4 networks are supported", shared.ErrValidation)
	}
	return prefix.Masked(), nil
}

func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToAddr(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// networkAddr and broadcastAddr bound the prefix address space.
func networkAddr(prefix netip.Prefix) netip.Addr {
	return prefix.Masked().Addr()
}

func broadcastAddr(prefix netip.Prefix) netip.Addr {
	base := addrToUint32(networkAddr(prefix))
	size := uint32(1) << (32 - prefix.Bits())
	return uint32ToAddr(base + size - 1)
}

func netmaskString(bits int) string {
	v := ^uint32(0) << (32 - bits)
	if bits == 0 {
		v = 0
	}
	return uint32ToAddr(v).String()
}

// SubnetInfoFor computes addressing facts for one network.
func SubnetInfoFor(network string) (SubnetInfo, error) {
	prefix, err := parseIPv4Prefix(network)
	if err != nil {
		return SubnetInfo{}, err
	}
	total := 1 << (32 - prefix.Bits())
	netAddr := networkAddr(prefix)
	bcast := broadcastAddr(prefix)

	first, last := netAddr, bcast
	usable := 0
	if total > 2 {
		first = uint32ToAddr(addrToUint32(netAddr) + 1)
		last = uint32ToAddr(addrToUint32(bcast) - 1)
		usable = total - 2
	}
	return SubnetInfo{
		Network:      netAddr.String(),
		Netmask:      netmaskString(prefix.Bits()),
		Broadcast:    bcast.String(),
		FirstHost:    first.String(),
		LastHost:     last.String(),
		TotalHosts:   total,
		UsableHosts:  usable,
		PrefixLength: prefix.Bits(),
	}, nil
}

// SplitSubnet divides a network into at least count equal subnets.
func SplitSubnet(network string, count int) (SubnetSplit, error) {
	prefix, err := parseIPv4Prefix(network)
	if err != nil {
		return SubnetSplit{}, err
	}
	if count < 2 {
		count = 2
	}
	extra := 0
	for 1<<extra < count {
		extra++
	}
	newBits := prefix.Bits() + extra
	if newBits > 32 {
		return SubnetSplit{}, fmt.Errorf("%w: cannot split %s into %d subnets", shared.ErrValidation, network, count)
	}

	size := uint32(1) << (32 - newBits)
	base := addrToUint32(networkAddr(prefix))
	n := 1 << extra
	subnets := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sub := netip.PrefixFrom(uint32ToAddr(base+uint32(i)*size), newBits)
		subnets = append(subnets, sub.String())
	}

	hosts := 0
	if int(size) > 2 {
		hosts = int(size) - 2
	}
	return SubnetSplit{
		OriginalNetwork: prefix.String(),
		Subnets:         subnets,
		SubnetCount:     len(subnets),
		HostsPerSubnet:  hosts,
	}, nil
}

// MergeSubnets finds the smallest single supernet covering all networks.
func MergeSubnets(networks []string) (SubnetMerge, error) {
	if len(networks) < 2 {
		return SubnetMerge{}, fmt.Errorf("%w: merge needs at least two networks", shared.ErrValidation)
	}
	prefixes := make([]netip.Prefix, 0, len(networks))
	for _, n := range networks {
		p, err := parseIPv4Prefix(n)
		if err != nil {
			return SubnetMerge{}, err
		}
		prefixes = append(prefixes, p)
	}

	bits := prefixes[0].Bits()
	base := prefixes[0].Addr()
	for {
		super := netip.PrefixFrom(base, bits).Masked()
		covered := true
		for _, p := range prefixes {
			if !super.Contains(p.Addr()) || !super.Contains(broadcastAddr(p)) {
				covered = false
				break
			}
		}
		if covered {
			return SubnetMerge{Subnets: networks, MergedNetwork: super.String()}, nil
		}
		if bits == 0 {
			return SubnetMerge{}, fmt.Errorf("%w: networks cannot be merged into one block", shared.ErrValidation)
		}
		bits--
	}
}

// ValidateNetwork reports whether the input parses as an IPv4 network.
func ValidateNetwork(network string) (bool, string) {
	prefix, err := parseIPv4Prefix(network)
	if err != nil {
		return false, err.Error()
	}
	return true, prefix.String()
}
