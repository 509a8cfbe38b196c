// SPDX-License-Identifier: MIT

//go:build linux

// Package netiface verifies that a network interface actually holds
// the multicast memberships the discovery layer asked the kernel to
// join, so a silently-dropped IGMP join doesn't look like healthy
// SPDP traffic.
package netiface

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// HasMulticastMembership reports whether ifaceName currently has
// group joined in its kernel-reported multicast membership list.
func HasMulticastMembership(ifaceName string, group net.IP) (bool, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return false, fmt.Errorf("netiface: lookup interface %q: %w", ifaceName, err)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return false, fmt.Errorf("netiface: list addresses on %q: %w", ifaceName, err)
	}
	// AddrList also surfaces multicast group memberships alongside
	// unicast addresses on most kernels. When the group isn't listed the
	// result is false, whether or not the interface has the multicast flag.
	for _, a := range addrs {
		if a.IPNet != nil && a.IPNet.IP.Equal(group) {
			return true, nil
		}
	}

	attrs := link.Attrs()
	if attrs.Flags&net.FlagMulticast == 0 {
		return false, nil
	}
	return false, nil
}

// InterfaceIsUp reports whether the named interface has its up flag
// (administrative state) set, so the discovery layer can skip it in SPDP
// locator enumeration rather than binding a dead interface.
func InterfaceIsUp(ifaceName string) (bool, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return false, fmt.Errorf("netiface: lookup interface %q: %w", ifaceName, err)
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}
