// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package verify

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jeremyhahn/go-danex/pkg/dane"
)

// Lookuper resolves the TLSA records of a service. *dane.Resolver
// implements it.
type Lookuper interface {
	Lookup(ctx context.Context, domain string, port uint16, protocol string) (*dane.LookupResult, error)
}

// Retriever obtains the certificate a service presents. *certfetch.Retriever
// implements it.
type Retriever interface {
	Retrieve(ctx context.Context, hostname string, port uint16) (*x509.Certificate, error)
}

// Config configures a Verifier.
type Config struct {
	// Lookuper resolves TLSA records. Required.
	Lookuper Lookuper

	// Retriever fetches the server certificate. Required.
	Retriever Retriever

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Verifier checks a service's certificate against its TLSA records. It
// holds no per-request state and is safe for concurrent use.
type Verifier struct {
	lookuper  Lookuper
	retriever Retriever
	logger    *slog.Logger
}

// New creates a Verifier.
func New(cfg *Config) (*Verifier, error) {
	if cfg == nil || cfg.Lookuper == nil || cfg.Retriever == nil {
		return nil, fmt.Errorf("%w: lookuper and retriever are required", ErrVerifierConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		lookuper:  cfg.Lookuper,
		retriever: cfg.Retriever,
		logger:    logger.With("component", "verifier"),
	}, nil
}

// Verify resolves the TLSA records for _<port>._<protocol>.<domain> while
// concurrently retrieving the certificate served at domain:port, then
// checks the certificate against every record.
//
// A lookup or retrieval failure aborts the verification and no report is
// produced. When both fail the lookup error is returned. Per-record
// problems never abort: they are reported as outcomes.
func (v *Verifier) Verify(ctx context.Context, domain string, port uint16, protocol string) (*Report, error) {
	metricVerify.Inc()

	var (
		result    *dane.LookupResult
		cert      *x509.Certificate
		lookupErr error
		fetchErr  error
	)

	// Each goroutine owns its result slot. Errors stay in the slots so the
	// lookup error wins regardless of completion order.
	var g errgroup.Group
	g.Go(func() error {
		result, lookupErr = v.lookuper.Lookup(ctx, domain, port, protocol)
		return nil
	})
	g.Go(func() error {
		cert, fetchErr = v.retriever.Retrieve(ctx, domain, port)
		return nil
	})
	_ = g.Wait()

	if lookupErr != nil {
		metricVerifyErrors.WithLabelValues("lookup").Inc()
		v.logger.Debug("tlsa lookup failed", "domain", domain, "port", port, "error", lookupErr)
		return nil, lookupErr
	}
	if fetchErr != nil {
		metricVerifyErrors.WithLabelValues("retrieve").Inc()
		v.logger.Debug("certificate retrieval failed", "domain", domain, "port", port, "error", fetchErr)
		return nil, fetchErr
	}

	report := Evaluate(result, cert)
	report.Domain = domain
	report.Port = port
	report.Protocol = protocol

	if !report.Trusted {
		metricVerifyUntrusted.Inc()
	}
	if report.AnyMatch {
		metricVerifyMatches.Inc()
	}

	v.logger.Info("verification complete",
		"qname", report.QueryName,
		"trusted", report.Trusted,
		"records", report.RecordCount,
		"match", report.AnyMatch)

	return report, nil
}

// Evaluate checks cert against every entry of a lookup result. Parse
// errors and invalid records are reported without a comparison. A
// comparison that fails is reported as a StatusError outcome. With a nil
// cert valid records are reported as StatusUnchecked.
func Evaluate(result *dane.LookupResult, cert *x509.Certificate) *Report {
	report := &Report{
		QueryName:   result.QueryName,
		Trusted:     result.Trusted,
		RecordCount: len(result.Entries),
		Records:     make([]Outcome, 0, len(result.Entries)),
	}

	for _, entry := range result.Entries {
		outcome := evaluateEntry(entry, cert)
		report.AnyMatch = report.AnyMatch || outcome.Matches
		report.Records = append(report.Records, outcome)
	}

	return report
}

func evaluateEntry(entry dane.Entry, cert *x509.Certificate) Outcome {
	if entry.Record == nil {
		msg := "unparsable TLSA record"
		if entry.ParseErr != nil {
			msg = entry.ParseErr.Error()
		}
		return Outcome{Status: StatusParseError, Error: msg}
	}

	rec := entry.Record
	outcome := Outcome{RecordInfo: newRecordInfo(rec)}

	if !rec.Valid() {
		outcome.Status = StatusInvalid
		outcome.ValidationErrors = rec.ValidationErrors()
		outcome.Error = validationSummary(outcome.ValidationErrors)
		return outcome
	}

	if cert == nil {
		outcome.Status = StatusUnchecked
		return outcome
	}

	ok, err := rec.Matches(cert)
	switch {
	case err != nil:
		outcome.Status = StatusError
		outcome.Error = err.Error()
	case ok:
		outcome.Status = StatusMatch
		outcome.Matches = true
	default:
		outcome.Status = StatusNoMatch
	}
	return outcome
}

// validationSummary joins the validation messages in field order.
func validationSummary(errs map[string][]dane.FieldError) string {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var msgs []string
	for _, field := range fields {
		for _, fe := range errs[field] {
			msgs = append(msgs, fe.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
