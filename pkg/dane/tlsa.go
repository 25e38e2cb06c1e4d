// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509"
	"fmt"
)

// SelectorFunc extracts the material a TLSA selector refers to from a
// certificate.
type SelectorFunc func(cert *x509.Certificate) ([]byte, error)

// selectorFuncs maps every valid selector to its extractor. SelectorInvalid
// is deliberately absent.
var selectorFuncs = map[Selector]SelectorFunc{
	SelectorFullCert: ExtractFullCertificate,
	SelectorSPKI:     ExtractSubjectPublicKeyInfo,
}

// MatcherFunc computes the comparable payload for a TLSA matching type.
type MatcherFunc func(data []byte) []byte

// matcherFuncs maps every valid matching type to its transform.
var matcherFuncs = map[MatchingType]MatcherFunc{
	MatchingExact:  func(d []byte) []byte { return d },
	MatchingSHA256: func(d []byte) []byte { h := sha256.Sum256(d); return h[:] },
	MatchingSHA512: func(d []byte) []byte { h := sha512.Sum512(d); return h[:] },
}

// ExtractFullCertificate returns the DER encoding of the whole certificate.
func ExtractFullCertificate(cert *x509.Certificate) ([]byte, error) {
	if cert == nil || len(cert.Raw) == 0 {
		return nil, fmt.Errorf("%w: no DER encoding", ErrCertificateMalformed)
	}
	return cert.Raw, nil
}

// ExtractSubjectPublicKeyInfo returns the DER-encoded SubjectPublicKeyInfo of
// the certificate. Certificates that were not produced by x509.ParseCertificate
// have no raw SPKI, in which case the public key is re-encoded.
func ExtractSubjectPublicKeyInfo(cert *x509.Certificate) ([]byte, error) {
	if cert == nil {
		return nil, fmt.Errorf("%w: nil certificate", ErrCertificateMalformed)
	}
	if len(cert.RawSubjectPublicKeyInfo) > 0 {
		return cert.RawSubjectPublicKeyInfo, nil
	}
	if cert.PublicKey == nil {
		return nil, fmt.Errorf("%w: no public key", ErrCertificateMalformed)
	}
	spki, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCertificateMalformed, err)
	}
	return spki, nil
}

// Extract runs the extractor registered for the selector.
func Extract(selector Selector, cert *x509.Certificate) ([]byte, error) {
	fn, ok := selectorFuncs[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSelector, selector)
	}
	return fn(cert)
}

// Transform applies the matching type to the selected bytes: identity for
// MatchingExact, a SHA-256 or SHA-512 digest otherwise.
func Transform(matchingType MatchingType, data []byte) ([]byte, error) {
	fn, ok := matcherFuncs[matchingType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMatching, matchingType)
	}
	return fn(data), nil
}

// ComputeTLSAData computes the TLSA Certificate Association Data for the given
// certificate using the specified selector and matching type.
func ComputeTLSAData(cert *x509.Certificate, selector Selector, matchingType MatchingType) ([]byte, error) {
	if cert == nil {
		return nil, ErrCertificateMalformed
	}
	if _, ok := selectorFuncs[selector]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSelector, selector)
	}
	if _, ok := matcherFuncs[matchingType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMatching, matchingType)
	}
	selected, err := Extract(selector, cert)
	if err != nil {
		return nil, err
	}
	return Transform(matchingType, selected)
}

// TLSARecord is one parsed TLSA resource record. It is immutable once
// constructed; unknown field codes are captured as validation errors rather
// than failing construction.
type TLSARecord struct {
	usage        Usage
	selector     Selector
	matchingType MatchingType
	data         []byte
	valid        bool
	errors       map[string][]FieldError
}

// NewTLSARecord builds a record from wire values. The returned record is
// never nil; check Valid before matching.
func NewTLSARecord(data []byte, usage, selector, matchingType int) *TLSARecord {
	r := &TLSARecord{
		usage:        UsageFromCode(usage),
		selector:     SelectorFromCode(selector),
		matchingType: MatchingTypeFromCode(matchingType),
		data:         append([]byte(nil), data...),
		errors:       make(map[string][]FieldError),
	}

	if r.usage == UsageInvalid {
		r.addError("usage", "Invalid usage", usage)
	}
	if r.selector == SelectorInvalid {
		r.addError("selector", "Invalid selector", selector)
	}
	if r.matchingType == MatchingInvalid {
		r.addError("matching_type", "Invalid matching type", matchingType)
	}
	r.valid = len(r.errors) == 0

	return r
}

func (r *TLSARecord) addError(field, msg string, value int) {
	r.errors[field] = append(r.errors[field], FieldError{
		Message: fmt.Sprintf("%s: %d", msg, value),
		Value:   value,
	})
}

// Usage returns the certificate usage.
func (r *TLSARecord) Usage() Usage { return r.usage }

// Selector returns the selector.
func (r *TLSARecord) Selector() Selector { return r.selector }

// MatchingType returns the matching type.
func (r *TLSARecord) MatchingType() MatchingType { return r.matchingType }

// Data returns a copy of the certificate association data.
func (r *TLSARecord) Data() []byte { return append([]byte(nil), r.data...) }

// Valid reports whether all three enumerated fields are registered values.
func (r *TLSARecord) Valid() bool { return r.valid }

// ValidationErrors returns a copy of the per-field validation errors.
func (r *TLSARecord) ValidationErrors() map[string][]FieldError {
	out := make(map[string][]FieldError, len(r.errors))
	for k, v := range r.errors {
		out[k] = append([]FieldError(nil), v...)
	}
	return out
}

// Matches reports whether the certificate matches this record. It returns
// ErrInvalidRecordMatch for invalid records and ErrCertificateMalformed when
// the selected material cannot be extracted.
func (r *TLSARecord) Matches(cert *x509.Certificate) (bool, error) {
	if !r.valid {
		return false, ErrInvalidRecordMatch
	}
	computed, err := ComputeTLSAData(cert, r.selector, r.matchingType)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, r.data) == 1, nil
}

// String formats the record in zone-file presentation order.
func (r *TLSARecord) String() string {
	return fmt.Sprintf("usage=%s selector=%s matchingType=%s", r.usage, r.selector, r.matchingType)
}
