package logparse

import "testing"

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Standard forms
		{"TRACE", "TRACE"}, {"DEBUG", "DEBUG"}, {"INFO", "INFO"},
		{"WARN", "WARN"}, {"ERROR", "ERROR"}, {"FATAL", "FATAL"},
		// Variants
		{"TRAC", "TRACE"}, {"TRC", "TRACE"},
		{"DEBU", "DEBUG"}, {"DBG", "DEBUG"}, {"DEB", "DEBUG"},
		{"INFORMATION", "INFO"}, {"INF", "INFO"},
		{"WARNING", "WARN"}, {"WRNG", "WARN"}, {"WRN", "WARN"},
		{"ERR", "ERROR"}, {"ERRO", "ERROR"},
		{"FATL", "FATAL"}, {"FTL", "FATAL"},
		{"CRITICAL", "FATAL"}, {"CRIT", "FATAL"}, {"CRT", "FATAL"},
		{"PANIC", "FATAL"}, {"PNC", "FATAL"},
		// Case insensitive
		{"info", "INFO"}, {"warn", "WARN"}, {"error", "ERROR"},
		{"debug", "DEBUG"}, {"trace", "TRACE"}, {"fatal", "FATAL"},
		// Prefix matching
		{"INFORMATION_EXTRA", "INFO"}, {"WARNING_LEVEL", "WARN"},
		{"ERROR_CODE_42", "ERROR"}, {"DEBUG_VERBOSE", "DEBUG"},
		{"TRACE_ALL", "TRACE"}, {"FATAL_CRASH", "FATAL"},
		{"CRITICAL_ALERT", "FATAL"},
		// Unknown defaults to INFO
		{"", "INFO"}, {"UNKNOWN", "INFO"}, {"foo", "INFO"},
		// Whitespace
		{"  INFO  ", "INFO"}, {"\tWARN\t", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeSeverity(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractSeverityFromText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2024-01-01 INFO Starting server", "INFO"},
		{"ERROR: connection refused", "ERROR"},
		{"[WARN] disk usage high", "WARN"},
		{"FATAL out of memory", "FATAL"},
		{"DEBUG checking cache", "DEBUG"},
		{"TRACE entering function", "TRACE"},
		{"WARNING deprecated API", "WARN"},
		{"CRITICAL system failure", "FATAL"},
		{"no severity here", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ExtractSeverityFromText(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractSeverityFromText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractSeverityFromText_LetterLevels(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"E (1234) wifi: disconnected", "ERROR"},
		{"W (55) app: low heap", "WARN"},
		{"I (42) app: up", "INFO"},
		{"D (7) tcp: retransmit", "DEBUG"},
		{"V (9) spi: clock", "TRACE"},
		{"\x1b[0;31mE (10) boot: panic\x1b[0m", "ERROR"},
		{"E(10) missing space", "INFO"},
		{"I (5) app: ERROR counter reset", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExtractSeverityFromText(tt.input); got != tt.expected {
				t.Errorf("ExtractSeverityFromText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSplitHost(t *testing.T) {
	tests := []struct {
		input, host, rest string
	}{
		{"[udplog-7A3F] I (42) app: up\n", "udplog-7A3F", "I (42) app: up\n"},
		{"no prefix", "", "no prefix"},
		{"[] empty", "", "[] empty"},
		{"[two words] x", "", "[two words] x"},
		{"[unterminated", "", "[unterminated"},
	}

	for _, tt := range tests {
		host, rest := SplitHost(tt.input)
		if host != tt.host || rest != tt.rest {
			t.Errorf("SplitHost(%q) = (%q, %q), want (%q, %q)", tt.input, host, rest, tt.host, tt.rest)
		}
	}
}

func TestParseLine(t *testing.T) {
	got := ParseLine("[bench] W (99) app: slow loop\r\n")
	want := Line{Host: "bench", Severity: "WARN", Message: "W (99) app: slow loop"}
	if got != want {
		t.Fatalf("ParseLine = %+v, want %+v", got, want)
	}
}
