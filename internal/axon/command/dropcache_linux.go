//go:build linux

package command

import (
	"os"

	"golang.org/x/sys/unix"
)

func dropPageCache(path string) error {
	unix.Sync()
	return os.WriteFile(path, []byte("3"), 0o200)
}
