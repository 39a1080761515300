//go:build windows

package window

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"unsafe"
)

var (
	user32                   = syscall.NewLazyDLL("user32.dll")
	enumWindows              = user32.NewProc("EnumWindows")
	getWindowTextW           = user32.NewProc("GetWindowTextW")
	getWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	isWindowVisible          = user32.NewProc("IsWindowVisible")
	sendMessageW             = user32.NewProc("SendMessageW")

	psapi                = syscall.NewLazyDLL("psapi.dll")
	getModuleFileNameExW = psapi.NewProc("GetModuleFileNameExW")

	kernel32    = syscall.NewLazyDLL("kernel32.dll")
	openProcess = kernel32.NewProc("OpenProcess")
)

const (
	processQueryInformation = 0x0400
	processVMRead           = 0x0010
	wmGetTextLength         = 0x000E
)

// syscall.NewCallback slots are never released, so one callback is shared by
// every enumeration and guarded by enumMu.
var (
	enumMu       sync.Mutex
	enumOnce     sync.Once
	enumCallback uintptr
	enumFound    []Window
)

func listWindows(ctx context.Context) ([]Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enumOnce.Do(func() {
		enumCallback = syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
			if hwnd == 0 {
				return 1
			}
			if visible, _, _ := isWindowVisible.Call(hwnd); visible == 0 {
				return 1
			}
			title := getWindowText(hwnd)
			if title == "" {
				return 1
			}

			var pid uint32
			getWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
			name, _ := getProcessExecutableName(pid)

			enumFound = append(enumFound, Window{Title: title, Process: name})
			return 1
		})
	})

	enumMu.Lock()
	defer enumMu.Unlock()

	enumFound = nil
	if ret, _, err := enumWindows.Call(enumCallback, 0); ret == 0 {
		return nil, fmt.Errorf("EnumWindows: %v", err)
	}
	windows := enumFound
	enumFound = nil
	return windows, nil
}

func getWindowText(hwnd uintptr) string {
	ret, _, _ := sendMessageW.Call(hwnd, wmGetTextLength, 0, 0)
	length := int(ret)
	if length == 0 {
		return ""
	}

	buf := make([]uint16, length+1)
	getWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(length+1))
	return syscall.UTF16ToString(buf)
}

func getProcessExecutableName(pid uint32) (string, error) {
	handle, _, _ := openProcess.Call(processQueryInformation|processVMRead, 0, uintptr(pid))
	if handle == 0 {
		return "", fmt.Errorf("could not open process %d", pid)
	}
	defer syscall.CloseHandle(syscall.Handle(handle))

	var buf [syscall.MAX_PATH]uint16
	ret, _, _ := getModuleFileNameExW.Call(handle, 0, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if ret == 0 {
		return "", fmt.Errorf("could not get module filename for process %d", pid)
	}
	return filepath.Base(syscall.UTF16ToString(buf[:])), nil
}
