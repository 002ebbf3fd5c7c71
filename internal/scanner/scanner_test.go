package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPort(t *testing.T) {
	tests := []struct {
		name  string
		input string
		port  int
		found bool
	}{
		{"localhost url", "  Local: http://localhost:5173/", 5173, true},
		{"loopback url", "server at https://127.0.0.1:8443", 8443, true},
		{"any addr url", "http://0.0.0.0:8080", 8080, true},
		{"listening on port", "Listening on port 4000", 4000, true},
		{"ready at", "ready at 3001", 3001, true},
		{"started on", "Server STARTED ON 9000", 9000, true},
		{"bare port", "using port 1234", 1234, true},
		{"port one", "port 1", 1, true},
		{"port zero", "port 0", 0, false},
		{"port 65536", "port 65536", 0, false},
		{"port 65535", "port 65535", 65535, true},
		{"port 99999", "port 99999", 0, false},
		{"zero padded", "port 000080", 80, true},
		{"zero padded long", "port 0000000000003000", 3000, true},
		{"all zeros", "port 00000", 0, false},
		{"huge digits", "port 123456789012345678901234567890", 0, false},
		{"no port", "compiling...", 0, false},
		{"remote url ignored", "http://example.com:8080 then nothing", 0, false},
		{"url beats later pattern", "port 1111 and http://localhost:2222", 2222, true},
		{"invalid first candidate skipped", "port 0 then port 3000", 3000, true},
		{"invalid url falls to next pattern", "http://localhost:0 listening on 7000", 7000, true},
		{"leftmost within pattern", "http://localhost:3000 http://localhost:4000", 3000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, found := FindPort(tt.input)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.port, port)
		})
	}
}

func TestStrip(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", Strip("\x1b[32mhttp://localhost:3000\x1b[0m"))
	assert.Equal(t, "  ➜  Local: http://localhost:4321/\n",
		Strip("\x1b[1m\x1b[32m  ➜  Local: http://localhost:4321/\x1b[0m\n"))
	assert.Equal(t, "ab", Strip("a\x1b[2Kb"))
	assert.Equal(t, "x", Strip("\x1b[?25lx"))
}

func TestScanner_ANSIColouredURL(t *testing.T) {
	s := New(DefaultLimit)
	port, ok := s.Feed([]byte("\x1b[32mhttp://localhost:3000\x1b[0m"))
	require.True(t, ok)
	assert.Equal(t, 3000, port)
}

func TestScanner_SplitAcrossChunks(t *testing.T) {
	s := New(DefaultLimit)
	_, ok := s.Feed([]byte("VITE ready. Local: http://local"))
	require.False(t, ok)
	_, ok = s.Feed([]byte("host:"))
	require.False(t, ok)
	port, ok := s.Feed([]byte("5173/\n"))
	require.True(t, ok)
	assert.Equal(t, 5173, port)
}

func TestScanner_SplitEscapeSequence(t *testing.T) {
	s := New(DefaultLimit)
	_, ok := s.Feed([]byte("listening on \x1b[3"))
	require.False(t, ok)
	port, ok := s.Feed([]byte("3m8080\x1b[0m"))
	require.True(t, ok)
	assert.Equal(t, 8080, port)
}

func TestScanner_BufferBound(t *testing.T) {
	s := New(DefaultLimit)
	noise := []byte(strings.Repeat("x", 700))
	for i := 0; i < 10; i++ {
		_, ok := s.Feed(noise)
		require.False(t, ok)
		assert.LessOrEqual(t, s.Len(), DefaultLimit)
	}
	assert.Equal(t, DefaultLimit, s.Len())

	// A single chunk bigger than the bound keeps only its tail.
	big := strings.Repeat("y", 5000) + "port 4242"
	port, ok := s.Feed([]byte(big))
	require.True(t, ok)
	assert.Equal(t, 4242, port)
	assert.Equal(t, DefaultLimit, s.Len())
}

func TestScanner_MatchOutsideWindowIsLost(t *testing.T) {
	s := New(64)
	_, ok := s.Feed([]byte("http://localhost:"))
	require.False(t, ok)
	_, ok = s.Feed([]byte(strings.Repeat("-", 64)))
	require.False(t, ok)
	_, ok = s.Feed([]byte("3000"))
	assert.False(t, ok)
}

func TestScanner_KeepsTail(t *testing.T) {
	s := New(8)
	s.Feed([]byte("abcdef"))
	s.Feed([]byte("ghij"))
	assert.Equal(t, "cdefghij", string(s.buf))
	assert.Equal(t, 8, s.Limit())
}

func TestNew_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, New(0).Limit())
	assert.Equal(t, DefaultLimit, New(-5).Limit())
}
