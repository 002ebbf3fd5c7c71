//go:build windows

package process

// shellCommandLine wraps a command line for cmd.exe. ConPTY takes a raw
// command line, so the script is appended verbatim.
func shellCommandLine(script string) string {
	return "cmd.exe /c " + script
}
