//go:build windows

package presence

import (
	"context"
	"fmt"
	"net"

	winio "github.com/Microsoft/go-winio"
)

// DialDiscord connects to the first \\.\pipe\discord-ipc-N pipe that accepts a connection.
func DialDiscord(ctx context.Context) (net.Conn, error) {
	var lastErr error
	for i := 0; i < 10; i++ {
		conn, err := winio.DialPipeContext(ctx, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no discord ipc pipe found: %w", lastErr)
}
