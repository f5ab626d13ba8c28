//go:build !linux

package handler

import "syscall"

func statMtimeNanos(stat *syscall.Stat_t) int64 {
	return stat.Mtimespec.Sec*1e9 + stat.Mtimespec.Nsec
}
