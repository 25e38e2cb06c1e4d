// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import (
	"testing"

	"github.com/flynn/noise"
	"github.com/stretchr/testify/assert"
)

func TestWipeBytes(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	WipeBytes(data)
	assert.Equal(t, make([]byte, 5), data)

	assert.NotPanics(t, func() { WipeBytes(nil) })
	assert.NotPanics(t, func() { WipeBytes([]byte{}) })
}

func TestWipeDHKey(t *testing.T) {
	key, err := GenerateStaticKey()
	assert.NoError(t, err)

	WipeDHKey(key)
	assert.Equal(t, make([]byte, KeySize), key.Private)
	assert.Equal(t, make([]byte, KeySize), key.Public)

	assert.NotPanics(t, func() { WipeDHKey(nil) })
	assert.NotPanics(t, func() { WipeDHKey(&noise.DHKey{}) })
}
