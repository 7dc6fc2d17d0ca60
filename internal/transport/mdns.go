// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"net"
	"sync"

	applog "spectra/internal/log"

	"github.com/hashicorp/mdns"
)

// Advertiser publishes the websocket endpoint on the local network so
// visualizers can find it without configuration.
type Advertiser struct {
	instance string
	service  string
	port     int
	path     string

	mu     sync.Mutex
	server *mdns.Server
}

// NewAdvertiser describes the service; nothing is sent until Start.
func NewAdvertiser(instance, service string, port int, path string) (*Advertiser, error) {
	if port <= 0 {
		return nil, fmt.Errorf("mdns: invalid port %d", port)
	}
	return &Advertiser{instance: instance, service: service, port: port, path: path}, nil
}

// TXT returns the TXT records advertised with the service.
func (a *Advertiser) TXT() []string {
	return []string{"path=" + a.path, "format=json"}
}

// Start begins answering mDNS queries.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return nil
	}

	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(a.instance, a.service, "", "", a.port, ips, a.TXT())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	a.server = server

	applog.Infof("Transport: Advertising %s.%s on port %d", a.instance, a.service, a.port)
	return nil
}

// Close stops advertising.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	return err
}

// localIPs returns the IPv4 addresses of every interface that is up.
func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
