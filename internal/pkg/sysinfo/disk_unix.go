//go:build unix

package sysinfo

import "golang.org/x/sys/unix"

func diskUsage(path string) (total, free uint64, err error) {
	if path == "" {
		path = "/"
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize) //nolint:gosec // размер блока всегда положителен
	return st.Blocks * bsize, st.Bavail * bsize, nil
}
