// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"errors"

	"github.com/jeremyhahn/go-danex/pkg/dane"
	"github.com/jeremyhahn/go-danex/pkg/noiseproto/doctor"
)

// Exit codes for the CLI.
const (
	// ExitSuccess indicates the command completed. A report whose
	// certificate matched no record is still a completed command.
	ExitSuccess = 0

	// ExitVerifyFailed indicates a lookup, retrieval or service failure,
	// or a usage error.
	ExitVerifyFailed = 1

	// ExitConfigError indicates a configuration or input validation error.
	ExitConfigError = 2
)

// Sentinel errors for CLI operations.
var (
	// ErrInvalidInput is returned when required input parameters are missing or invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVerificationFailed is returned when a verification could not produce a report.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrKeyOperation is returned when a key generation or decoding operation fails.
	ErrKeyOperation = errors.New("key operation failed")

	// ErrFileOperation is returned when a file read or write operation fails.
	ErrFileOperation = errors.New("file operation failed")

	// ErrServe is returned when the service cannot be started or stopped.
	ErrServe = errors.New("serve failed")
)

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, doctor.ErrConfig),
		errors.Is(err, dane.ErrResolverConfig):
		return ExitConfigError
	default:
		return ExitVerifyFailed
	}
}
