//go:build !windows

package presence

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// DialDiscord connects to the first discord-ipc-N socket that accepts a
// connection, searching the runtime and temp directories including the
// Flatpak and Snap sandboxes.
func DialDiscord(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	var lastErr error
	for _, path := range socketPaths() {
		conn, err := dialer.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no discord ipc socket found: %w", lastErr)
}

func socketPaths() []string {
	seen := make(map[string]bool)
	var bases []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" && !seen[dir] {
			seen[dir] = true
			bases = append(bases, dir)
		}
	}
	if !seen["/tmp"] {
		bases = append(bases, "/tmp")
	}

	var paths []string
	for _, base := range bases {
		for _, sub := range []string{"", "app/com.discordapp.Discord", "snap.discord"} {
			for i := 0; i < 10; i++ {
				paths = append(paths, filepath.Join(base, sub, fmt.Sprintf("discord-ipc-%d", i)))
			}
		}
	}
	return paths
}
