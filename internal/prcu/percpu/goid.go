// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Goroutine ID extraction.
//
// The default processor affinity hashes the current goroutine id, so a
// critical section entered and exited on the same goroutine resolves to the
// same Record. The id is parsed from the first line of runtime.Stack output;
// this costs on the order of a microsecond, which is acceptable because the
// id is needed once per lock/unlock bracket, not per memory access.

package percpu

import "runtime"

// GoroutineID returns the current goroutine's id, or 0 if the stack header
// cannot be parsed.
func GoroutineID() int64 {
	// Only the header line is needed.
	// Format: "goroutine 123 [running]:\n..."
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the numeric id from a stack trace header.
// Direct byte parsing, no allocation.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var gid int64
	for i := len(prefix); i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
