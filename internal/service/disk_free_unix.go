//go:build !windows

package service

import (
	"fmt"
	"os"
	"syscall"
)

func freeDiskSpace(dir string) (uint64, error) {
	stat, err := os.Stat(dir)
	if err != nil {
		return 0, err
	}
	if !stat.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", dir)
	}

	var fs syscall.Statfs_t
	if err := syscall.Statfs(dir, &fs); err != nil {
		return 0, err
	}

	return uint64(fs.Bavail) * uint64(fs.Bsize), nil
}
