// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import "github.com/flynn/noise"

// WipeBytes zeros b in place. The garbage collector may already have
// copied the backing array, so this narrows rather than closes the window
// in which key material stays in memory.
func WipeBytes(b []byte) {
	clear(b)
}

// WipeDHKey zeros the private and public halves of key. A nil key is a
// no-op.
func WipeDHKey(key *noise.DHKey) {
	if key == nil {
		return
	}
	WipeBytes(key.Private)
	WipeBytes(key.Public)
}
