// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package verify

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-danex/pkg/dane"
)

// Status classifies the outcome of a single TLSA answer.
type Status string

const (
	// StatusMatch means the record is valid and the certificate matches it.
	StatusMatch Status = "match"

	// StatusNoMatch means the record is valid and the certificate does not
	// match it.
	StatusNoMatch Status = "no_match"

	// StatusInvalid means the record carries an unregistered usage,
	// selector or matching type and was not compared.
	StatusInvalid Status = "invalid"

	// StatusParseError means the answer could not be decoded into a record.
	StatusParseError Status = "parse_error"

	// StatusError means the comparison itself failed, e.g. because the
	// certificate could not be re-encoded.
	StatusError Status = "error"

	// StatusUnchecked means the record is valid but no certificate was
	// available to compare it with.
	StatusUnchecked Status = "unchecked"
)

// RecordInfo describes the fields of a decoded TLSA record.
type RecordInfo struct {
	Usage            string `json:"usage"`
	UsageCode        int    `json:"usage_code"`
	Selector         string `json:"selector"`
	SelectorCode     int    `json:"selector_code"`
	MatchingType     string `json:"matching_type"`
	MatchingTypeCode int    `json:"matching_type_code"`
	Data             string `json:"data"`
}

// Outcome is the result of checking one TLSA answer against the
// certificate. RecordInfo is nil for parse errors.
type Outcome struct {
	*RecordInfo

	Status           Status                       `json:"status"`
	Matches          bool                         `json:"matches"`
	Error            string                       `json:"error,omitempty"`
	ValidationErrors map[string][]dane.FieldError `json:"validation_errors,omitempty"`
}

func newRecordInfo(rec *dane.TLSARecord) *RecordInfo {
	return &RecordInfo{
		Usage:            rec.Usage().String(),
		UsageCode:        rec.Usage().Code(),
		Selector:         rec.Selector().String(),
		SelectorCode:     rec.Selector().Code(),
		MatchingType:     rec.MatchingType().String(),
		MatchingTypeCode: rec.MatchingType().Code(),
		Data:             hex.EncodeToString(rec.Data()),
	}
}

// String renders the outcome on one line: the record fields followed by
// the association data, or the error for answers that failed to parse.
func (o Outcome) String() string {
	if o.RecordInfo == nil {
		return fmt.Sprintf("<unparsable TLSA record: %s>", o.Error)
	}
	line := fmt.Sprintf("%s %s %s %s", o.Usage, o.Selector, o.MatchingType, o.Data)
	if o.Status == StatusInvalid || o.Status == StatusError {
		line += fmt.Sprintf(" (%s)", o.Error)
	}
	return line
}

// Report is the result of a completed verification.
type Report struct {
	Domain      string    `json:"domain"`
	Port        uint16    `json:"port"`
	Protocol    string    `json:"protocol"`
	QueryName   string    `json:"query_name"`
	Trusted     bool      `json:"trusted"`
	RecordCount int       `json:"record_count"`
	Records     []Outcome `json:"records"`
	AnyMatch    bool      `json:"any_match"`
}

// HasValidRecord reports whether at least one answer decoded into a record
// with registered field values.
func (r *Report) HasValidRecord() bool {
	for _, o := range r.Records {
		if o.Status != StatusInvalid && o.Status != StatusParseError {
			return true
		}
	}
	return false
}

// PayloadRecord is one element of the tlsaRecords list of a Payload.
type PayloadRecord struct {
	Usage        string `json:"usage,omitempty"`
	Selector     string `json:"selector,omitempty"`
	MatchingType string `json:"matchingType,omitempty"`
	Matches      bool   `json:"matches,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Payload is the compact report returned by the network service.
type Payload struct {
	Trusted     bool            `json:"trusted"`
	DoesMatch   bool            `json:"doesMatch"`
	NumRecs     int             `json:"numRecs"`
	TLSARecords []PayloadRecord `json:"tlsaRecords"`
}

// Payload converts the report to the network service representation. The
// matches key is present only on matching records; error is present on
// answers that failed to parse, carry unregistered field values or could
// not be compared.
func (r *Report) Payload() *Payload {
	p := &Payload{
		Trusted:     r.Trusted,
		DoesMatch:   r.AnyMatch,
		NumRecs:     r.RecordCount,
		TLSARecords: make([]PayloadRecord, 0, len(r.Records)),
	}
	for _, o := range r.Records {
		if o.RecordInfo == nil {
			p.TLSARecords = append(p.TLSARecords, PayloadRecord{Error: o.Error})
			continue
		}
		rec := PayloadRecord{
			Usage:        o.Usage,
			Selector:     o.Selector,
			MatchingType: o.MatchingType,
			Matches:      o.Matches,
		}
		if o.Status == StatusError || o.Status == StatusInvalid {
			rec.Error = o.Error
		}
		p.TLSARecords = append(p.TLSARecords, rec)
	}
	return p
}

// MarshalPayload returns the JSON encoding of Payload.
func (r *Report) MarshalPayload() ([]byte, error) {
	return json.Marshal(r.Payload())
}
