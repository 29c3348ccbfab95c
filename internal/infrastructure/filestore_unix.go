//go:build !windows

package infrastructure

import "syscall"

// freeBytes returns the available bytes on the volume holding path
func freeBytes(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
