// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"github.com/miekg/dns"
)

// commonRecordParams lists the selector/matching combinations published by
// GenerateCommonTLSARecords.
var commonRecordParams = []struct {
	Selector     Selector
	MatchingType MatchingType
}{
	{SelectorFullCert, MatchingSHA256}, // x 0 1
	{SelectorSPKI, MatchingSHA256},     // x 1 1
	{SelectorFullCert, MatchingSHA512}, // x 0 2
	{SelectorSPKI, MatchingSHA512},     // x 1 2
}

// GenerateTLSARecord generates a DANE-EE SPKI SHA-256 ("3 1 1") record for
// the certificate, the most widely deployed TLSA parameter set.
func GenerateTLSARecord(cert *x509.Certificate, hostname string, port uint16, protocol string) (*TLSARecordString, error) {
	return GenerateTLSARecordFull(cert, hostname, port, protocol, UsageDANEEE, SelectorSPKI, MatchingSHA256)
}

// GenerateTLSARecordFull generates a TLSA record string with full control
// over all TLSA parameters and formats it as a zone file line.
func GenerateTLSARecordFull(
	cert *x509.Certificate,
	hostname string,
	port uint16,
	protocol string,
	usage Usage,
	selector Selector,
	matchingType MatchingType,
) (*TLSARecordString, error) {
	if cert == nil {
		return nil, ErrCertificateMalformed
	}
	if err := validateTarget(hostname, port, protocol); err != nil {
		return nil, err
	}
	if !usage.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedUsage, usage.Code())
	}

	data, err := ComputeTLSAData(cert, selector, matchingType)
	if err != nil {
		return nil, err
	}

	name := dns.Fqdn(QueryName(hostname, port, protocol))
	hexData := hex.EncodeToString(data)
	zoneLine := fmt.Sprintf("%s IN TLSA %d %d %d %s",
		name, usage.Code(), selector.Code(), matchingType.Code(), hexData)

	return &TLSARecordString{
		Name:         name,
		Usage:        usage,
		Selector:     selector,
		MatchingType: matchingType,
		HexData:      hexData,
		ZoneLine:     zoneLine,
	}, nil
}

// GenerateCommonTLSARecords generates records for both selectors and both
// hash algorithms with the given usage.
func GenerateCommonTLSARecords(cert *x509.Certificate, hostname string, port uint16, protocol string, usage Usage) ([]*TLSARecordString, error) {
	records := make([]*TLSARecordString, 0, len(commonRecordParams))
	for _, p := range commonRecordParams {
		rec, err := GenerateTLSARecordFull(cert, hostname, port, protocol, usage, p.Selector, p.MatchingType)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseZoneLine parses a TLSA record in zone file presentation format into
// a TLSARecord, using the miekg/dns zone parser.
func ParseZoneLine(line string) (*TLSARecord, error) {
	rr, err := dns.NewRR(line)
	if err != nil {
		return nil, fmt.Errorf("dane: parse zone line: %w", err)
	}
	tlsa, ok := rr.(*dns.TLSA)
	if !ok {
		return nil, fmt.Errorf("dane: parse zone line: not a TLSA record: %s", dns.TypeToString[rr.Header().Rrtype])
	}
	entry := parseTLSA(tlsa)
	if entry.ParseErr != nil {
		return nil, entry.ParseErr
	}
	return entry.Record, nil
}
