//go:build !windows

// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sys

import (
	"os"
	"syscall"
)

// GetOwnership extracts the numeric UID/GID from a *syscall.Stat_t, for the
// 0x7855/0x5855 Unix extra field records. ok is false when stat's Sys()
// value isn't the expected type (e.g. a synthetic os.FileInfo).
func GetOwnership(stat os.FileInfo) (uid, gid uint32, ok bool) {
	s, ok := stat.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return s.Uid, s.Gid, true
}

// GetHostSystem returns the HostSystem type.
// On Unix we usually don't inspect the FD for filesystem type (like NTFS),
// we just report the OS type.
func GetHostSystem(_ uintptr) HostSystem {
	return GetHostSystemByOS()
}

func GetHostSystemByOS() HostSystem {
	return HostSystemUNIX
}

// unixNanoToWinFiletime converts Unix epoch time to Windows FILETIME (100ns ticks since 1601).
func unixNanoToWinFiletime(sec int64, nsec int64) uint64 {
	// Seconds between 1601-01-01 and 1970-01-01
	const intervalsDiff = 11644473600

	// Convert seconds to 100ns ticks
	ticks := (uint64(sec) + intervalsDiff) * 10000000

	// Add nanoseconds converted to 100ns ticks
	ticks += uint64(nsec) / 100

	return ticks
}
