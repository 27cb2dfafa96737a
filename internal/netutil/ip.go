// Package netutil holds small IP helpers shared by the parsers and
// analyzers.
package netutil

import (
	"net"
	"strings"
)

var privateNets []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",
	} {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		privateNets = append(privateNets, ipnet)
	}
}

// IsPrivate reports whether the address sits in RFC 1918 / ULA space.
// Unparseable input is treated as not private.
func IsPrivate(addr string) bool {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return false
	}
	for _, ipnet := range privateNets {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

// HostCIDR renders an address as a single-host CIDR for generated policy
// objects; input that is not an address comes back unchanged.
func HostCIDR(addr string) string {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return addr
	}
	if ip.To4() != nil {
		return addr + "/32"
	}
	return addr + "/128"
}

// MaskToPrefixLen converts a dotted mask ("255.255.255.0") to its prefix
// length, -1 when the mask is invalid.
func MaskToPrefixLen(mask string) int {
	ip := net.ParseIP(strings.TrimSpace(mask))
	if ip == nil {
		return -1
	}
	v4 := ip.To4()
	if v4 == nil {
		return -1
	}
	ones, bits := net.IPMask(v4).Size()
	if bits == 0 {
		return -1
	}
	return ones
}
