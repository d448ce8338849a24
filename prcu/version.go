// Copyright 2025 The prcu Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prcu

import internal "github.com/lihaol/prcu-go/internal/prcu/core"

// Version information for the Pure-Go PRCU runtime.
const (
	// Version is the current version of the PRCU runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the PRCU instance.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Algorithm is the grace-period protocol in use.
	Algorithm string

	// Procs is the number of logical processors the runtime maintains.
	Procs int
}

// GetInfo returns information about the PRCU runtime.
//
// Example:
//
//	info := prcu.GetInfo()
//	fmt.Printf("PRCU %s (%s, %d procs)\n", info.Version, info.Algorithm, info.Procs)
func GetInfo() Info {
	return Info{
		Version:   Version,
		Algorithm: "PRCU fast consensus (TPDS 2016)",
		Procs:     internal.Default().Procs(),
	}
}
