package main

import (
	"context"
	"io"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// inputPump copies every line read from the agent's inputs into one writer,
// normally the forwarder sink. Each line is one Write call and writes are
// serialized, so lines from different inputs never interleave.
type inputPump struct {
	sources []NamedLogSource
	out     io.Writer

	mu     sync.Mutex // guards out, lines, errors
	lines  map[string]uint64
	errors map[string]uint64

	stopOnce sync.Once
}

func newInputPump(sources []NamedLogSource, out io.Writer) *inputPump {
	return &inputPump{
		sources: sources,
		out:     out,
		lines:   make(map[string]uint64, len(sources)),
		errors:  make(map[string]uint64, len(sources)),
	}
}

// Run copies lines until every source has closed or ctx is done.
func (p *inputPump) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range p.sources {
		src := src
		g.Go(func() error {
			p.copy(ctx, src)
			return nil
		})
	}
	return g.Wait()
}

func (p *inputPump) copy(ctx context.Context, src NamedLogSource) {
	name := src.Name()
	in := src.Lines()
	buf := make([]byte, 0, 256)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-in:
			if !ok {
				return
			}
			if line.Text == "" {
				continue
			}
			buf = append(buf[:0], line.Text...)
			buf = append(buf, '\n')
			p.write(name, buf)
		}
	}
}

func (p *inputPump) write(name string, b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.out.Write(b); err != nil {
		p.errors[name]++
		return
	}
	p.lines[name]++
}

// Stop stops every source. It is idempotent.
func (p *inputPump) Stop() {
	p.stopOnce.Do(func() {
		for _, src := range p.sources {
			src.Stop()
		}
	})
}

func (p *inputPump) HasSources() bool {
	return len(p.sources) > 0
}

// Names lists the inputs in order.
func (p *inputPump) Names() []string {
	names := make([]string, 0, len(p.sources))
	for _, src := range p.sources {
		names = append(names, src.Name())
	}
	return names
}

// Lines returns how many lines from the named input reached the writer.
func (p *inputPump) Lines(name string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lines[name]
}

// Errors returns how many lines from the named input the writer rejected.
func (p *inputPump) Errors(name string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors[name]
}

func (p *inputPump) logTotals() {
	for _, name := range p.Names() {
		log.Printf("server: input %s forwarded %d lines (%d write errors)", name, p.Lines(name), p.Errors(name))
	}
}
