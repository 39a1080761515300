//go:build !linux && !windows

package window

import "context"

func listWindows(context.Context) ([]Window, error) {
	return nil, ErrUnsupported
}
