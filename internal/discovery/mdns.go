// Package discovery advertises the ingest endpoint over multicast DNS so
// devices on the local network can find it without a configured address.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hashicorp/mdns"

	"github.com/banshee-data/argus/internal/monitoring"
)

// ServiceType is the DNS-SD service advertised for the UDP ingest port.
const ServiceType = "_argus._udp"

// Config describes the advertised service.
type Config struct {
	Instance string   // Instance name, also used as the .local host name
	Port     int      // UDP ingest port
	IPs      []net.IP // Addresses to publish; defaults to LocalIPs
	TXT      []string // Extra key=value records
}

// NewService builds the mDNS zone for the ingest endpoint.
func NewService(cfg Config) (*mdns.MDNSService, error) {
	if cfg.Instance == "" {
		return nil, errors.New("mdns instance name is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid mdns port %d", cfg.Port)
	}
	ips := cfg.IPs
	if len(ips) == 0 {
		ips = LocalIPs()
	}
	if len(ips) == 0 {
		return nil, errors.New("no non-loopback addresses to advertise")
	}

	// Host name and IPs are set explicitly so the zone does not depend on
	// the resolver configuration of the host.
	return mdns.NewMDNSService(cfg.Instance, ServiceType, "", cfg.Instance+".local.", cfg.Port, ips, cfg.TXT)
}

// Advertise answers mDNS queries for the service until ctx is done.
func Advertise(ctx context.Context, cfg Config) error {
	service, err := NewService(cfg)
	if err != nil {
		return err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to start mdns responder: %w", err)
	}
	monitoring.Logf("Advertising %s.%s.local on UDP port %d", cfg.Instance, ServiceType, cfg.Port)

	<-ctx.Done()
	return server.Shutdown()
}

// LocalIPs returns the addresses of all up, non-loopback interfaces.
func LocalIPs() []net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			switch addr := addr.(type) {
			case *net.IPNet:
				ips = append(ips, addr.IP)
			case *net.IPAddr:
				ips = append(ips, addr.IP)
			}
		}
	}
	return ips
}
