// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package dane provides RFC 6698 DANE/TLSA verification primitives for
// DNS-Based Authentication of Named Entities (DANE). It builds TLSA query
// names, resolves TLSA records together with their DNSSEC status, and tests
// X.509 certificates against the records.
package dane

import (
	"errors"
	"fmt"
)

// DNS lookup errors indicate issues resolving TLSA records.
var (
	// ErrLookupFailed indicates the resolver did not return a GOOD response
	// for the TLSA query. Use errors.As with *LookupError to get the status.
	ErrLookupFailed = errors.New("dane: TLSA lookup failed")

	// ErrResolverConfig indicates the resolver configuration is invalid.
	ErrResolverConfig = errors.New("dane: invalid resolver configuration")
)

// TLSA matching errors indicate issues comparing certificates against TLSA records.
var (
	// ErrInvalidRecordMatch indicates Matches was called on a record that
	// failed validation. Invalid records must never be compared.
	ErrInvalidRecordMatch = errors.New("dane: match attempted on invalid TLSA record")

	// ErrCertificateMalformed indicates the certificate could not be
	// re-encoded to produce the material selected by the record.
	ErrCertificateMalformed = errors.New("dane: certificate malformed")

	// ErrUnsupportedSelector indicates the TLSA selector has no extractor.
	ErrUnsupportedSelector = errors.New("dane: unsupported TLSA selector")

	// ErrUnsupportedMatching indicates the TLSA matching type has no transform.
	ErrUnsupportedMatching = errors.New("dane: unsupported TLSA matching type")

	// ErrUnsupportedUsage indicates the TLSA certificate usage is not registered.
	ErrUnsupportedUsage = errors.New("dane: unsupported TLSA usage")
)

// Input validation errors indicate invalid parameters were provided.
var (
	// ErrInvalidHostname indicates an empty or malformed hostname was provided.
	ErrInvalidHostname = errors.New("dane: invalid hostname")

	// ErrInvalidPort indicates port number zero was provided.
	ErrInvalidPort = errors.New("dane: invalid port")

	// ErrInvalidProtocol indicates an empty transport protocol label was provided.
	ErrInvalidProtocol = errors.New("dane: invalid protocol")
)

// LookupError is returned by Resolver.Lookup when the DNS query completed
// with a status other than StatusGood.
type LookupError struct {
	// QueryName is the TLSA owner name that was queried.
	QueryName string

	// Code is the raw response status returned by the querier.
	Code ResponseStatus
}

// Error returns the query name, the numeric status and its symbolic name.
func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %s: status %d (%s)", ErrLookupFailed, e.QueryName, int(e.Code), e.Name())
}

// Name returns the symbolic name of the response status.
func (e *LookupError) Name() string {
	return e.Code.String()
}

// Unwrap returns ErrLookupFailed for use with errors.Is.
func (e *LookupError) Unwrap() error {
	return ErrLookupFailed
}

// ParseError marks a TLSA answer whose rdata could not be decoded. It takes
// the place of a TLSARecord in a LookupResult so sibling records are still
// reported.
type ParseError struct {
	// Name is the owner name of the offending answer.
	Name string

	// Err is the decoding failure.
	Err error
}

// Error describes the undecodable answer.
func (e *ParseError) Error() string {
	return fmt.Sprintf("dane: unparsable TLSA rdata for %s: %v", e.Name, e.Err)
}

// Unwrap returns the decoding failure.
func (e *ParseError) Unwrap() error {
	return e.Err
}
