// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miekg/dns"
)

// maxHostnameLength is the longest presentation-format domain name.
const maxHostnameLength = 253

// Resolver looks up TLSA records through a Querier and turns the answers
// into typed records together with the reply's DNSSEC trust flag.
type Resolver struct {
	querier Querier
	logger  *slog.Logger
}

// NewResolver creates a TLSA resolver on top of the given querier.
func NewResolver(querier Querier, logger *slog.Logger) (*Resolver, error) {
	if querier == nil {
		return nil, fmt.Errorf("%w: querier is required", ErrResolverConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		querier: querier,
		logger:  logger.With("component", "tlsa_resolver"),
	}, nil
}

// NewDNSResolver is a convenience constructor combining NewDNSQuerier and
// NewResolver.
func NewDNSResolver(cfg *ResolverConfig, logger *slog.Logger) (*Resolver, error) {
	q, err := NewDNSQuerier(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewResolver(q, logger)
}

// Lookup queries TLSA records for _<port>._<protocol>.<domain>. Insecure
// answers are returned with Trusted set to false rather than dropped. A
// response status other than StatusGood yields a *LookupError. Answers whose
// rdata cannot be decoded are reported as ParseError entries; one bad
// answer never aborts the lookup.
func (r *Resolver) Lookup(ctx context.Context, domain string, port uint16, protocol string) (*LookupResult, error) {
	if err := validateTarget(domain, port, protocol); err != nil {
		return nil, err
	}

	qname := QueryName(domain, port, protocol)

	r.logger.Debug("looking up TLSA records", "qname", qname)

	res, err := r.querier.GeneralQuery(ctx, qname, dns.TypeTLSA, Extensions{
		DNSSECReturnValidationChain: true,
		ReturnBothV4AndV6:           true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, qname, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s: empty result", ErrLookupFailed, qname)
	}
	if res.Status != StatusGood {
		return nil, &LookupError{QueryName: qname, Code: res.Status}
	}

	result := &LookupResult{QueryName: qname}
	if len(res.Replies) == 0 {
		return result, nil
	}

	reply := res.Replies[0]
	result.Trusted = reply.DNSSECStatus == DNSSECSecure
	result.Entries = make([]Entry, 0, len(reply.Answer))

	for _, rr := range reply.Answer {
		tlsa, ok := rr.(*dns.TLSA)
		if !ok {
			continue
		}
		result.Entries = append(result.Entries, parseTLSA(tlsa))
	}

	r.logger.Debug("resolved TLSA records",
		"qname", qname, "count", len(result.Entries),
		"dnssec_status", reply.DNSSECStatus.String(), "trusted", result.Trusted)

	return result, nil
}

// parseTLSA converts a TLSA resource record into a lookup entry.
func parseTLSA(rr *dns.TLSA) Entry {
	data, err := hex.DecodeString(rr.Certificate)
	if err != nil {
		return Entry{ParseErr: &ParseError{Name: trimDot(rr.Hdr.Name), Err: err}}
	}
	return Entry{Record: NewTLSARecord(data, int(rr.Usage), int(rr.Selector), int(rr.MatchingType))}
}

// QueryName constructs the DNS owner name for a TLSA query per RFC 6698
// Section 3: "_<port>._<protocol>.<domain>". The domain is used verbatim;
// internationalized names must be A-label encoded by the caller.
func QueryName(domain string, port uint16, protocol string) string {
	return fmt.Sprintf("_%d._%s.%s", port, protocol, domain)
}

// validateTarget checks the inputs of a TLSA lookup.
func validateTarget(domain string, port uint16, protocol string) error {
	if domain == "" || strings.ContainsRune(domain, 0) || len(domain) > maxHostnameLength {
		return ErrInvalidHostname
	}
	if port == 0 {
		return ErrInvalidPort
	}
	if protocol == "" || strings.ContainsAny(protocol, ". \x00") {
		return ErrInvalidProtocol
	}
	return nil
}
