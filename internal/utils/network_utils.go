package utils

import (
	"net"
	"strings"
)

var cgnatBlock = mustCIDR("100.64.0.0/10")

// Interface is the slice of net.Interface the relay heuristic inspects.
type Interface struct {
	Name  string
	Up    bool
	Loop  bool
	Addrs []net.IP
}

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or CGNAT
// and returns true if we should force TURN usage.
func ShouldForceRelay() bool {
	return LooksRelayed(systemInterfaces())
}

// LooksRelayed reports whether any live, non-loopback interface is a tunnel
// or holds an address in the carrier-grade NAT range.
func LooksRelayed(ifaces []Interface) bool {
	for _, iface := range ifaces {
		if !iface.Up || iface.Loop {
			continue
		}

		name := strings.ToLower(iface.Name)
		for _, marker := range []string{"tun", "tap", "wg", "ppp", "warp"} {
			if strings.Contains(name, marker) {
				return true
			}
		}

		for _, ip := range iface.Addrs {
			if cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}

func systemInterfaces() []Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		info := Interface{
			Name: iface.Name,
			Up:   iface.Flags&net.FlagUp != 0,
			Loop: iface.Flags&net.FlagLoopback != 0,
		}
		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					info.Addrs = append(info.Addrs, v.IP)
				case *net.IPAddr:
					info.Addrs = append(info.Addrs, v.IP)
				}
			}
		}
		out = append(out, info)
	}
	return out
}

func mustCIDR(s string) *net.IPNet {
	_, block, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return block
}
