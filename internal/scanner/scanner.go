// Package scanner extracts the serving port from a dev server's terminal
// output. It keeps a bounded tail of raw output so that matches split across
// reads are still found.
package scanner

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultLimit is the number of trailing output bytes kept for matching.
const DefaultLimit = 2048

var ansiPattern = regexp.MustCompile(`\x1b[\[\]()#;?]*[0-9;]*[a-zA-Z@]`)

// Tried in order; the first pattern yielding a valid port wins.
var portPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0):(\d+)`),
	regexp.MustCompile(`(?i)(?:listening|running|started|ready)\s+(?:on|at)\s+(?:port\s+)?(\d+)`),
	regexp.MustCompile(`(?i)port\s+(\d+)`),
}

// Scanner accumulates output and reports the first plausible TCP port.
// It is not safe for concurrent use.
type Scanner struct {
	limit int
	buf   []byte
}

// New returns a Scanner keeping at most limit bytes. A non-positive limit
// selects DefaultLimit.
func New(limit int) *Scanner {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Scanner{limit: limit, buf: make([]byte, 0, limit)}
}

// Feed appends chunk, trims the buffer to its tail and searches the cleaned
// view. It returns the port and true on a match.
func (s *Scanner) Feed(chunk []byte) (int, bool) {
	if len(chunk) >= s.limit {
		s.buf = append(s.buf[:0], chunk[len(chunk)-s.limit:]...)
	} else {
		if over := len(s.buf) + len(chunk) - s.limit; over > 0 {
			n := copy(s.buf, s.buf[over:])
			s.buf = s.buf[:n]
		}
		s.buf = append(s.buf, chunk...)
	}
	return FindPort(Strip(string(s.buf)))
}

// Len reports the number of buffered bytes.
func (s *Scanner) Len() int { return len(s.buf) }

// Limit reports the buffer bound.
func (s *Scanner) Limit() int { return s.limit }

// Strip removes ANSI and OSC escape sequences.
func Strip(text string) string {
	return ansiPattern.ReplaceAllString(text, "")
}

// FindPort applies the port patterns to already cleaned text.
func FindPort(text string) (int, bool) {
	for _, re := range portPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if p, ok := validPort(m[1]); ok {
				return p, true
			}
		}
	}
	return 0, false
}

func validPort(digits string) (int, bool) {
	digits = strings.TrimLeft(digits, "0")
	// Long digit runs overflow Atoi and are out of range anyway.
	if digits == "" || len(digits) > 5 {
		return 0, false
	}
	p, err := strconv.Atoi(digits)
	if err != nil || p <= 0 || p >= 65536 {
		return 0, false
	}
	return p, true
}
