// Package logparse picks apart forwarded log lines for display.
package logparse

import (
	"regexp"
	"strings"
)

// Severity levels, most verbose first.
const (
	Trace = "TRACE"
	Debug = "DEBUG"
	Info  = "INFO"
	Warn  = "WARN"
	Error = "ERROR"
	Fatal = "FATAL"
)

// SeverityRegex matches spelled-out severity levels in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\b`)

// letterRegex matches the single-letter level used by embedded loggers,
// e.g. "E (1234) wifi: disconnected" or "W (55) app: low heap".
var letterRegex = regexp.MustCompile(`^(?:\x1b\[[0-9;]*m)?([VDIWE]) \(\d+\) `)

var aliases = map[string]string{
	"TRACE": Trace, "TRAC": Trace, "TRC": Trace, "VERBOSE": Trace,
	"DEBUG": Debug, "DEBU": Debug, "DBG": Debug, "DEB": Debug,
	"INFO": Info, "INFORMATION": Info, "INF": Info,
	"WARN": Warn, "WARNING": Warn, "WRNG": Warn, "WRN": Warn,
	"ERROR": Error, "ERR": Error, "ERRO": Error,
	"FATAL": Fatal, "FATL": Fatal, "FTL": Fatal, "CRITICAL": Fatal,
	"CRIT": Fatal, "CRT": Fatal, "PANIC": Fatal, "PNC": Fatal,
}

var prefixes = map[string]string{
	"TRAC": Trace, "DEBU": Debug, "INFO": Info,
	"WARN": Warn, "ERRO": Error, "FATA": Fatal, "CRIT": Fatal,
}

var letters = map[string]string{
	"V": Trace, "D": Debug, "I": Info, "W": Warn, "E": Error,
}

// NormalizeSeverity maps the many spellings of a level to one of the
// constants above. Unknown input is INFO.
func NormalizeSeverity(severity string) string {
	s := strings.ToUpper(strings.TrimSpace(severity))
	if level, ok := aliases[s]; ok {
		return level
	}
	if len(s) >= 4 {
		if level, ok := prefixes[s[:4]]; ok {
			return level
		}
	}
	return Info
}

// ExtractSeverityFromText finds the level of a message, preferring the
// embedded single-letter form at the start of the line.
func ExtractSeverityFromText(message string) string {
	if m := letterRegex.FindStringSubmatch(message); m != nil {
		return letters[m[1]]
	}
	if m := SeverityRegex.FindStringSubmatch(message); len(m) > 1 {
		return NormalizeSeverity(m[1])
	}
	return Info
}

// SplitHost separates a "[host] " prefix from the rest of a forwarded line.
// Lines without a prefix return an empty host.
func SplitHost(line string) (host, rest string) {
	if !strings.HasPrefix(line, "[") {
		return "", line
	}
	end := strings.Index(line, "] ")
	if end <= 1 || strings.ContainsAny(line[1:end], " []") {
		return "", line
	}
	return line[1:end], line[end+2:]
}

// Line is a forwarded datagram broken into display parts.
type Line struct {
	Host     string
	Severity string
	Message  string
}

// ParseLine splits a forwarded datagram and detects its severity.
func ParseLine(datagram string) Line {
	host, rest := SplitHost(datagram)
	rest = strings.TrimRight(rest, "\r\n")
	return Line{
		Host:     host,
		Severity: ExtractSeverityFromText(rest),
		Message:  rest,
	}
}
