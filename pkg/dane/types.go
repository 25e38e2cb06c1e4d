// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"fmt"
	"time"
)

// Usage is the TLSA Certificate Usage field as defined in RFC 6698 Section 2.1.1.
// It is carried on every record and report but does not affect matching.
type Usage int

const (
	// UsageInvalid marks a certificate usage code outside the registry.
	UsageInvalid Usage = -1

	// UsagePKIXTA (PKIX-TA) constrains which CA can issue certificates
	// for the service.
	UsagePKIXTA Usage = 0

	// UsagePKIXEE (PKIX-EE) pins a specific end-entity certificate that
	// must also pass PKIX validation.
	UsagePKIXEE Usage = 1

	// UsageDANETA (DANE-TA) specifies a trust anchor for the domain.
	UsageDANETA Usage = 2

	// UsageDANEEE (DANE-EE) pins a specific end-entity certificate.
	UsageDANEEE Usage = 3
)

// Selector is the TLSA Selector field as defined in RFC 6698 Section 2.1.2.
type Selector int

const (
	// SelectorInvalid marks a selector code outside the registry.
	SelectorInvalid Selector = -1

	// SelectorFullCert selects the full DER-encoded certificate for matching.
	SelectorFullCert Selector = 0

	// SelectorSPKI selects the DER-encoded SubjectPublicKeyInfo for matching.
	SelectorSPKI Selector = 1
)

// MatchingType is the TLSA Matching Type field as defined in RFC 6698 Section 2.1.3.
type MatchingType int

const (
	// MatchingInvalid marks a matching type code outside the registry.
	MatchingInvalid MatchingType = -1

	// MatchingExact requires an exact binary match of the selected data.
	MatchingExact MatchingType = 0

	// MatchingSHA256 compares a SHA-256 hash of the selected data.
	MatchingSHA256 MatchingType = 1

	// MatchingSHA512 compares a SHA-512 hash of the selected data.
	MatchingSHA512 MatchingType = 2
)

var usageNames = map[Usage]string{
	UsageInvalid: "INVALID",
	UsagePKIXTA:  "PKIX_TA",
	UsagePKIXEE:  "PKIX_EE",
	UsageDANETA:  "DANE_TA",
	UsageDANEEE:  "DANE_EE",
}

var selectorNames = map[Selector]string{
	SelectorInvalid:  "INVALID",
	SelectorFullCert: "FULL_CERTIFICATE",
	SelectorSPKI:     "SUBJECT_PUBLIC_KEY_INFO",
}

var matchingNames = map[MatchingType]string{
	MatchingInvalid: "INVALID",
	MatchingExact:   "EXACT",
	MatchingSHA256:  "SHA256",
	MatchingSHA512:  "SHA512",
}

// UsageFromCode maps a wire code to a Usage. Unknown codes map to
// UsageInvalid; the mapping never fails.
func UsageFromCode(code int) Usage {
	u := Usage(code)
	if _, ok := usageNames[u]; !ok {
		return UsageInvalid
	}
	return u
}

// SelectorFromCode maps a wire code to a Selector. Unknown codes map to
// SelectorInvalid.
func SelectorFromCode(code int) Selector {
	s := Selector(code)
	if _, ok := selectorNames[s]; !ok {
		return SelectorInvalid
	}
	return s
}

// MatchingTypeFromCode maps a wire code to a MatchingType. Unknown codes map
// to MatchingInvalid.
func MatchingTypeFromCode(code int) MatchingType {
	m := MatchingType(code)
	if _, ok := matchingNames[m]; !ok {
		return MatchingInvalid
	}
	return m
}

// Code returns the wire code, or -1 for UsageInvalid.
func (u Usage) Code() int { return int(u) }

// Valid reports whether u is a registered usage.
func (u Usage) Valid() bool { return UsageFromCode(int(u)) != UsageInvalid }

// String returns the registry acronym, e.g. "DANE_EE".
func (u Usage) String() string {
	if name, ok := usageNames[u]; ok {
		return name
	}
	return fmt.Sprintf("Usage(%d)", int(u))
}

// Code returns the wire code, or -1 for SelectorInvalid.
func (s Selector) Code() int { return int(s) }

// Valid reports whether s is a registered selector.
func (s Selector) Valid() bool { return SelectorFromCode(int(s)) != SelectorInvalid }

// String returns the selector name, e.g. "SUBJECT_PUBLIC_KEY_INFO".
func (s Selector) String() string {
	if name, ok := selectorNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Selector(%d)", int(s))
}

// Code returns the wire code, or -1 for MatchingInvalid.
func (m MatchingType) Code() int { return int(m) }

// Valid reports whether m is a registered matching type.
func (m MatchingType) Valid() bool { return MatchingTypeFromCode(int(m)) != MatchingInvalid }

// String returns the matching type name, e.g. "SHA256".
func (m MatchingType) String() string {
	if name, ok := matchingNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MatchingType(%d)", int(m))
}

// FieldError is a single validation failure recorded on a TLSARecord.
type FieldError struct {
	// Message describes the failure.
	Message string `json:"message"`

	// Value is the offending wire value.
	Value int `json:"value"`
}

// Entry is one element of a LookupResult: exactly one of Record or
// ParseErr is set.
type Entry struct {
	Record   *TLSARecord
	ParseErr *ParseError
}

// LookupResult is the outcome of a successful TLSA lookup.
type LookupResult struct {
	// QueryName is the TLSA owner name that was queried.
	QueryName string

	// Trusted reports whether the resolver validated the answer with DNSSEC.
	Trusted bool

	// Entries holds one element per TLSA answer, in DNS answer order.
	Entries []Entry
}

// Records returns the entries that decoded into TLSA records, valid or not.
func (r *LookupResult) Records() []*TLSARecord {
	out := make([]*TLSARecord, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Record != nil {
			out = append(out, e.Record)
		}
	}
	return out
}

// ResolverConfig configures the DNS backend used for TLSA lookups.
type ResolverConfig struct {
	// Server is the DNS resolver address (e.g., "8.8.8.8:53").
	// When empty, the system resolver from /etc/resolv.conf is used.
	Server string

	// UseTLS enables DNS-over-TLS (DoT) on port 853.
	UseTLS bool

	// TLSServerName is the TLS Server Name Indication (SNI) value
	// for DNS-over-TLS connections. Only used when UseTLS is true.
	TLSServerName string

	// Timeout is the maximum duration for a DNS query.
	// Default: 5 seconds.
	Timeout time.Duration

	// ResolvConf overrides the path of the system resolver configuration.
	// Default: /etc/resolv.conf.
	ResolvConf string
}

// TLSARecordString represents a TLSA record formatted for DNS zone files.
type TLSARecordString struct {
	// Name is the DNS owner name (e.g., "_443._tcp.www.example.com.").
	Name string

	// Usage is the Certificate Usage field.
	Usage Usage

	// Selector is the Selector field.
	Selector Selector

	// MatchingType is the Matching Type field.
	MatchingType MatchingType

	// HexData is the hex-encoded Certificate Association Data.
	HexData string

	// ZoneLine is the full DNS zone file line
	// (e.g., "_443._tcp.www.example.com. IN TLSA 3 1 1 a1b2c3d4...").
	ZoneLine string
}
