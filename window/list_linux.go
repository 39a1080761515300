//go:build linux

package window

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// listWindows shells out to wmctrl, which prints one line per managed window:
// "<id> <desktop> <wm_class> <host> <title>".
func listWindows(ctx context.Context) ([]Window, error) {
	if _, err := exec.LookPath("wmctrl"); err != nil {
		return nil, fmt.Errorf("wmctrl is not installed: %w", err)
	}

	out, err := exec.CommandContext(ctx, "wmctrl", "-l", "-x").Output()
	if err != nil {
		return nil, fmt.Errorf("wmctrl: %w", err)
	}
	return parseWmctrl(out), nil
}

func parseWmctrl(out []byte) []Window {
	var windows []Window
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		// The title is whatever follows the host column and may contain spaces.
		line := scanner.Text()
		rest := line
		for i := 0; i < 4; i++ {
			rest = strings.TrimLeft(rest, " \t")
			if j := strings.IndexAny(rest, " \t"); j >= 0 {
				rest = rest[j:]
			} else {
				rest = ""
			}
		}
		windows = append(windows, Window{
			Process: fields[2],
			Title:   strings.TrimSpace(rest),
		})
	}
	return windows
}
