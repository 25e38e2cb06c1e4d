// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package verify runs a DANE verification: it resolves the TLSA records of
// a service and retrieves the certificate the service presents, then tests
// the certificate against every record and assembles a Report.
package verify

import "errors"

var (
	// ErrVerifierConfig indicates a Verifier was constructed without a
	// lookuper or a retriever.
	ErrVerifierConfig = errors.New("verify: invalid verifier configuration")
)
