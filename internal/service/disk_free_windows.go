//go:build windows

package service

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func freeDiskSpace(dir string) (uint64, error) {
	stat, err := os.Stat(dir)
	if err != nil {
		return 0, err
	}
	if !stat.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", dir)
	}

	ptr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return 0, err
	}

	return freeBytes, nil
}
