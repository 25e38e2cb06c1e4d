// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-danex/pkg/noiseproto"
)

func TestKeyGenerate_WritesKeyAndPrintsPublicKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.key")

	out, err := executeCommand(t, context.Background(), "key", "generate", "--output", path, "--quiet")
	require.NoError(t, err)

	key, err := noiseproto.ReadStaticKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Public key: "+noiseproto.PublicKeyHex(key)+"\n", out)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestKeyGenerate_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.key")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o600))

	_, err := executeCommand(t, context.Background(), "key", "generate", "--output", path, "--quiet")
	assert.ErrorIs(t, err, ErrFileOperation)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestKeyShow(t *testing.T) {
	key, err := noiseproto.GenerateStaticKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "service.key")
	require.NoError(t, noiseproto.WriteStaticKeyFile(path, key))

	out, err := executeCommand(t, context.Background(), "key", "show", "--key-file", path, "--quiet")
	require.NoError(t, err)
	assert.Equal(t, noiseproto.PublicKeyHex(key), strings.TrimPrefix(strings.TrimSpace(out), "Public key: "))
}

func TestKeyShow_Errors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.key")
	require.NoError(t, os.WriteFile(corrupt, []byte("abcd\n"), 0o600))

	_, err := executeCommand(t, context.Background(), "key", "show", "--key-file", corrupt, "--quiet")
	assert.ErrorIs(t, err, ErrKeyOperation)

	_, err = executeCommand(t, context.Background(), "key", "show", "--key-file", filepath.Join(dir, "missing.key"), "--quiet")
	assert.ErrorIs(t, err, ErrFileOperation)

	_, err = executeCommand(t, context.Background(), "key", "show", "--key-file", "", "--quiet")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
