//go:build linux

package handler

import "syscall"

func statMtimeNanos(stat *syscall.Stat_t) int64 {
	return stat.Mtim.Sec*1e9 + stat.Mtim.Nsec
}
