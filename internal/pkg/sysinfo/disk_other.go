//go:build !unix

package sysinfo

import "errors"

func diskUsage(string) (uint64, uint64, error) {
	return 0, 0, errors.New("sysinfo: disk usage не поддерживается на этой платформе")
}
