// SPDX-License-Identifier: MIT

//go:build !linux

package netiface

import "net"

// HasMulticastMembership always reports (false, nil) on non-Linux
// platforms: netlink has no equivalent here. udpmc.New, given an
// Interface, therefore logs its missing-membership warning for each
// joined group on these platforms.
func HasMulticastMembership(ifaceName string, group net.IP) (bool, error) {
	return false, nil
}

// InterfaceIsUp reports the named interface's up flag as the standard
// net package sees it, or the lookup error if there is no such
// interface.
func InterfaceIsUp(ifaceName string) (bool, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return false, err
	}
	return ifi.Flags&net.FlagUp != 0, nil
}
