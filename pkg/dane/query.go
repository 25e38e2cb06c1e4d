// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// defaultTimeout is the default DNS query timeout.
	defaultTimeout = 5 * time.Second

	// defaultDNSPort is the standard DNS port.
	defaultDNSPort = "53"

	// defaultDoTPort is the standard DNS-over-TLS port.
	defaultDoTPort = "853"

	// defaultResolvConf is the system resolver configuration file.
	defaultResolvConf = "/etc/resolv.conf"

	// ednsBufferSize is the UDP payload size advertised with EDNS0.
	ednsBufferSize = 4096
)

// ResponseStatus is the overall status of a general DNS query. The numeric
// values follow the getdns response status registry.
type ResponseStatus int

const (
	// StatusGood means the query produced at least one answer section.
	StatusGood ResponseStatus = 900

	// StatusNoName means the name does not exist or has no data of the type.
	StatusNoName ResponseStatus = 901

	// StatusAllTimeout means no upstream answered in time.
	StatusAllTimeout ResponseStatus = 902

	// StatusNoSecureAnswers means only secure answers were requested and
	// none were available.
	StatusNoSecureAnswers ResponseStatus = 903

	// StatusAllBogusAnswers means every answer failed DNSSEC validation.
	StatusAllBogusAnswers ResponseStatus = 904

	// StatusServerFailure means the upstream returned SERVFAIL or another
	// error rcode.
	StatusServerFailure ResponseStatus = 905

	// StatusRefused means the upstream refused the query.
	StatusRefused ResponseStatus = 906
)

var responseStatusNames = map[ResponseStatus]string{
	StatusGood:            "GOOD",
	StatusNoName:          "NO_NAME",
	StatusAllTimeout:      "ALL_TIMEOUT",
	StatusNoSecureAnswers: "NO_SECURE_ANSWERS",
	StatusAllBogusAnswers: "ALL_BOGUS_ANSWERS",
	StatusServerFailure:   "SERVER_FAILURE",
	StatusRefused:         "REFUSED",
}

// String returns the symbolic name of the status, or UNKNOWN(<code>).
func (s ResponseStatus) String() string {
	if name, ok := responseStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// DNSSECStatus is the validation state of a single reply.
type DNSSECStatus int

const (
	// DNSSECSecure means the reply validated to a trust anchor.
	DNSSECSecure DNSSECStatus = 400

	// DNSSECBogus means validation was attempted and failed.
	DNSSECBogus DNSSECStatus = 401

	// DNSSECIndeterminate means no trust anchor covers the reply.
	DNSSECIndeterminate DNSSECStatus = 402

	// DNSSECInsecure means the reply comes from an unsigned zone.
	DNSSECInsecure DNSSECStatus = 403

	// DNSSECNotPerformed means validation was not requested.
	DNSSECNotPerformed DNSSECStatus = 404
)

var dnssecStatusNames = map[DNSSECStatus]string{
	DNSSECSecure:        "SECURE",
	DNSSECBogus:         "BOGUS",
	DNSSECIndeterminate: "INDETERMINATE",
	DNSSECInsecure:      "INSECURE",
	DNSSECNotPerformed:  "NOT_PERFORMED",
}

// String returns the symbolic name of the DNSSEC status.
func (s DNSSECStatus) String() string {
	if name, ok := dnssecStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// Extensions are the query options understood by a Querier.
type Extensions struct {
	// DNSSECReturnValidationChain requests DNSSEC records and a per-reply
	// DNSSEC status.
	DNSSECReturnValidationChain bool

	// ReturnBothV4AndV6 requests both address families. It has no effect
	// on TLSA answers but is part of the query contract.
	ReturnBothV4AndV6 bool
}

// Reply is one response message of a general query.
type Reply struct {
	// DNSSECStatus is the validation state of this reply.
	DNSSECStatus DNSSECStatus

	// Answer is the answer section, including any RRSIG records.
	Answer []dns.RR
}

// QueryResult is the outcome of a general query.
type QueryResult struct {
	// Status is the overall response status.
	Status ResponseStatus

	// Replies holds the response messages when Status is StatusGood.
	Replies []Reply
}

// Querier is the DNSSEC-aware DNS query capability consumed by Resolver.
// Implementations report upstream failures through QueryResult.Status and
// reserve the error return for requests that could not be issued at all.
type Querier interface {
	GeneralQuery(ctx context.Context, name string, rrtype uint16, ext Extensions) (*QueryResult, error)
}

// DNSQuerier is a stub-resolver Querier on top of miekg/dns. The DNSSEC
// status of a reply is taken from the Authenticated Data flag set by the
// upstream validating resolver.
type DNSQuerier struct {
	client    *dns.Client
	tcpClient *dns.Client
	server    string
	logger    *slog.Logger
}

// NewDNSQuerier creates a querier with the given configuration. It validates
// the configuration and applies defaults for unset fields (timeout defaults to
// 5 seconds, the server defaults to the first nameserver in resolv.conf).
func NewDNSQuerier(cfg *ResolverConfig, logger *slog.Logger) (*DNSQuerier, error) {
	if cfg == nil {
		return nil, ErrResolverConfig
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &dns.Client{
		Timeout: timeout,
	}
	var tcpClient *dns.Client

	server := cfg.Server

	if cfg.UseTLS {
		client.Net = "tcp-tls"
		tlsCfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if cfg.TLSServerName != "" {
			tlsCfg.ServerName = cfg.TLSServerName
		}
		client.TLSConfig = tlsCfg

		if server != "" && !hasPort(server) {
			server = net.JoinHostPort(server, defaultDoTPort)
		}
	} else {
		client.Net = "udp"
		tcpClient = &dns.Client{Net: "tcp", Timeout: timeout}
		if server != "" && !hasPort(server) {
			server = net.JoinHostPort(server, defaultDNSPort)
		}
	}

	if server == "" {
		path := cfg.ResolvConf
		if path == "" {
			path = defaultResolvConf
		}
		systemCfg, err := dns.ClientConfigFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrResolverConfig, err.Error())
		}
		if len(systemCfg.Servers) == 0 {
			return nil, fmt.Errorf("%w: no nameservers in %s", ErrResolverConfig, path)
		}
		port := systemCfg.Port
		if port == "" {
			port = defaultDNSPort
		}
		server = net.JoinHostPort(systemCfg.Servers[0], port)
	}

	return &DNSQuerier{
		client:    client,
		tcpClient: tcpClient,
		server:    server,
		logger:    logger.With("component", "dns_querier"),
	}, nil
}

// Server returns the upstream address queries are sent to.
func (q *DNSQuerier) Server() string {
	return q.server
}

// GeneralQuery sends a single recursive query for name and classifies the
// response. Exchange failures are reported as StatusAllTimeout.
func (q *DNSQuerier) GeneralQuery(ctx context.Context, name string, rrtype uint16, ext Extensions) (*QueryResult, error) {
	if name == "" {
		return nil, ErrInvalidHostname
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), rrtype)
	msg.RecursionDesired = true
	if ext.DNSSECReturnValidationChain {
		msg.SetEdns0(ednsBufferSize, true)
	}

	q.logger.Debug("sending query",
		"name", name, "type", dns.TypeToString[rrtype], "server", q.server,
		"dnssec", ext.DNSSECReturnValidationChain, "both_families", ext.ReturnBothV4AndV6)

	resp, _, err := q.client.ExchangeContext(ctx, msg, q.server)
	if err == nil && resp != nil && resp.Truncated && q.tcpClient != nil {
		q.logger.Debug("response truncated, retrying over tcp", "name", name)
		resp, _, err = q.tcpClient.ExchangeContext(ctx, msg, q.server)
	}
	if err != nil || resp == nil {
		q.logger.Debug("query failed", "name", name, "error", err)
		return &QueryResult{Status: StatusAllTimeout}, nil
	}

	return classifyResponse(resp, ext), nil
}

// classifyResponse maps a DNS response onto a QueryResult.
func classifyResponse(resp *dns.Msg, ext Extensions) *QueryResult {
	switch resp.Rcode {
	case dns.RcodeSuccess:
		if len(resp.Answer) == 0 {
			return &QueryResult{Status: StatusNoName}
		}
	case dns.RcodeNameError:
		return &QueryResult{Status: StatusNoName}
	case dns.RcodeServerFailure:
		// A validating resolver answers SERVFAIL for bogus data when DO is set.
		if ext.DNSSECReturnValidationChain {
			return &QueryResult{Status: StatusAllBogusAnswers}
		}
		return &QueryResult{Status: StatusServerFailure}
	case dns.RcodeRefused:
		return &QueryResult{Status: StatusRefused}
	default:
		return &QueryResult{Status: StatusServerFailure}
	}

	status := DNSSECNotPerformed
	if ext.DNSSECReturnValidationChain {
		status = DNSSECInsecure
		if resp.AuthenticatedData {
			status = DNSSECSecure
		}
	}

	return &QueryResult{
		Status: StatusGood,
		Replies: []Reply{{
			DNSSECStatus: status,
			Answer:       resp.Answer,
		}},
	}
}

// hasPort reports whether addr already carries a port.
func hasPort(addr string) bool {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return true
	}
	return false
}

// trimDot strips one trailing dot from a name.
func trimDot(name string) string {
	return strings.TrimSuffix(name, ".")
}
