// Package tls keeps a locally trusted certificate for the bridge's
// listeners and serves the CA to devices that need to install it.
package tls

import (
	"net"
)

// GetLANIPs returns the IPv4 addresses of every interface that is up and
// not a loopback.
func GetLANIPs() ([]string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var addrs []net.Addr
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		addrs = append(addrs, ifaceAddrs...)
	}
	return ipv4Strings(addrs), nil
}

// ipv4Strings keeps the non-loopback IPv4 addresses in addrs, without
// duplicates, in their original order.
func ipv4Strings(addrs []net.Addr) []string {
	var ips []string
	seen := make(map[string]bool)
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.To4() == nil || ip.IsLoopback() {
			continue
		}
		s := ip.String()
		if !seen[s] {
			seen[s] = true
			ips = append(ips, s)
		}
	}
	return ips
}

// GetAllHosts returns localhost plus the LAN IPs, the host set the server
// certificate is issued for. On error the loopback hosts are still
// returned.
func GetAllHosts() ([]string, error) {
	hosts := []string{"localhost", "127.0.0.1"}

	lanIPs, err := GetLANIPs()
	if err != nil {
		return hosts, err
	}
	return append(hosts, lanIPs...), nil
}
