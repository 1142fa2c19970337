//go:build !linux

package command

import (
	"fmt"
	"runtime"
)

func dropPageCache(string) error {
	return fmt.Errorf("dropping the page cache is not supported on %s", runtime.GOOS)
}
