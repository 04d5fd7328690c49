// Package netwatch turns interface address changes into callbacks.
package netwatch

import (
	"context"
	"log"
	"net"
	"slices"
	"sync"
	"time"
)

// DefaultInterval is the default polling period.
const DefaultInterval = 2 * time.Second

// AddrFunc lists the current interface addresses.
type AddrFunc func() ([]string, error)

// Config holds tunable parameters for the poller.
type Config struct {
	Interval time.Duration
	Addrs    AddrFunc
}

// Poller calls onChange whenever the set of interface addresses differs
// from the previous poll. The first poll always counts as a change.
type Poller struct {
	interval time.Duration
	addrs    AddrFunc
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	last []string
	seen bool
}

// NewPoller creates a poller.
func NewPoller(onChange func(), conf ...Config) *Poller {
	interval := DefaultInterval
	addrs := SystemAddrs
	if len(conf) > 0 {
		if conf[0].Interval > 0 {
			interval = conf[0].Interval
		}
		if conf[0].Addrs != nil {
			addrs = conf[0].Addrs
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		interval: interval,
		addrs:    addrs,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start polls once immediately and then on every interval.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.poll()
			}
		}
	}()
}

// Stop ends polling and waits for the poll loop to exit.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Poller) poll() {
	cur, err := p.addrs()
	if err != nil {
		log.Printf("netwatch: list addresses: %v", err)
		return
	}
	slices.Sort(cur)
	if p.seen && slices.Equal(cur, p.last) {
		return
	}
	p.last, p.seen = cur, true
	p.onChange()
}

// SystemAddrs returns the IPv4 addresses of every up interface.
func SystemAddrs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok || ipn.IP.To4() == nil {
				continue
			}
			out = append(out, ifi.Name+"="+ipn.String())
		}
	}
	return out, nil
}
