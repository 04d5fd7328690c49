package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/udplog/internal/logparse"
)

type palette struct {
	host   lipgloss.Style
	levels map[string]lipgloss.Style
}

func newPalette() *palette {
	color := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return &palette{
		host: color("39"),
		levels: map[string]lipgloss.Style{
			logparse.Trace: color("240"),
			logparse.Debug: color("245"),
			logparse.Info:  lipgloss.NewStyle(),
			logparse.Warn:  color("220"),
			logparse.Error: color("196"),
			logparse.Fatal: color("196").Bold(true),
		},
	}
}

// formatDatagram renders one received datagram as a single output line.
// A nil palette prints the text unchanged.
func formatDatagram(p []byte, styles *palette) string {
	text := strings.ToValidUTF8(string(p), "\uFFFD")
	if styles == nil {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return text
	}

	line := logparse.ParseLine(text)
	var b strings.Builder
	if line.Host != "" {
		b.WriteString(styles.host.Render("[" + line.Host + "]"))
		b.WriteByte(' ')
	}
	b.WriteString(styles.levels[line.Severity].Render(line.Message))
	b.WriteByte('\n')
	return b.String()
}

// listen prints every datagram received on port until ctx is done.
func listen(ctx context.Context, port int, out io.Writer, color bool) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	defer conn.Close()

	var styles *palette
	if color {
		styles = newPalette()
	}
	fmt.Fprintf(out, "Listening for UDP logs on %s (Ctrl+C to stop)\n", conn.LocalAddr())
	return receive(ctx, conn, out, styles)
}

func receive(ctx context.Context, conn net.PacketConn, out io.Writer, styles *palette) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, 65535)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if _, err := io.WriteString(out, formatDatagram(buf[:n], styles)); err != nil {
			return err
		}
	}
}
