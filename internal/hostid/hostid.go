// Package hostid derives the name a forwarder announces itself with.
package hostid

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/tinytelemetry/udplog/internal/model"
)

// ErrNoIdentity is returned when neither a hardware address nor a system
// hostname is available.
var ErrNoIdentity = errors.New("hostid: no hardware address or hostname")

// Config overrides where the identity is read from.
type Config struct {
	Interfaces func() ([]net.Interface, error)
	Hostname   func() (string, error)
}

// Identity computes "<prefix>-XXXX" once, XXXX being the last two bytes of
// the first hardware address found.
type Identity struct {
	prefix     string
	interfaces func() ([]net.Interface, error)
	hostname   func() (string, error)

	mu   sync.Mutex
	name string
}

// New returns an unresolved identity.
func New(prefix string, conf ...Config) *Identity {
	if prefix == "" {
		prefix = model.DefaultHostPrefix
	}
	id := &Identity{
		prefix:     prefix,
		interfaces: net.Interfaces,
		hostname:   os.Hostname,
	}
	if len(conf) > 0 {
		if conf[0].Interfaces != nil {
			id.interfaces = conf[0].Interfaces
		}
		if conf[0].Hostname != nil {
			id.hostname = conf[0].Hostname
		}
	}
	return id
}

// Static returns an identity that is already resolved to name.
func Static(name string) *Identity {
	return &Identity{name: name}
}

// Hostname returns the resolved name, or "" before Resolve succeeds.
func (id *Identity) Hostname() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.name
}

// Resolve computes the name. Later calls return the first result.
func (id *Identity) Resolve() (string, error) {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.name != "" {
		return id.name, nil
	}

	if mac := id.firstHardwareAddr(); len(mac) >= 2 {
		id.name = FromMAC(id.prefix, mac)
		return id.name, nil
	}
	if id.hostname != nil {
		if h, err := id.hostname(); err == nil && h != "" {
			id.name = h
			return id.name, nil
		}
	}
	return "", ErrNoIdentity
}

func (id *Identity) firstHardwareAddr() net.HardwareAddr {
	if id.interfaces == nil {
		return nil
	}
	ifaces, err := id.interfaces()
	if err != nil {
		return nil
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 || len(ifi.HardwareAddr) < 2 {
			continue
		}
		return ifi.HardwareAddr
	}
	return nil
}

// FromMAC formats prefix and the last two bytes of mac.
func FromMAC(prefix string, mac net.HardwareAddr) string {
	n := len(mac)
	return fmt.Sprintf("%s-%02X%02X", prefix, mac[n-2], mac[n-1])
}
