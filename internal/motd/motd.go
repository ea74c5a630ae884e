// Package motd loads the message-of-the-day file once at startup and
// wraps it to 80 bytes per line, per spec.md §6.
package motd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const wrapWidth = 80

// Load reads path and returns its content as wrapped output lines. An
// empty path or a missing file yields an empty MOTD rather than an
// error — the server still completes registration without one.
func Load(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("motd: open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, wrap(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("motd: read %s: %w", path, err)
	}
	return lines, nil
}

func wrap(line string) []string {
	if line == "" {
		return []string{""}
	}
	var out []string
	for len(line) > wrapWidth {
		cut := strings.LastIndex(line[:wrapWidth], " ")
		if cut <= 0 {
			cut = wrapWidth
		}
		out = append(out, line[:cut])
		line = strings.TrimLeft(line[cut:], " ")
	}
	out = append(out, line)
	return out
}
