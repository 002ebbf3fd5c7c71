//go:build !windows

package process

// shellArgs wraps a command line for bash so pipes, operators and
// expansions keep working.
func shellArgs(script string) []string {
	return []string{"bash", "-c", script}
}
