// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-danex/pkg/dane"
	"github.com/jeremyhahn/go-danex/pkg/verify"
)

func TestInitLogging_Levels(t *testing.T) {
	defer func() {
		quiet, debug, logFormat = false, false, "text"
		initLogging()
	}()

	tests := []struct {
		name   string
		quiet  bool
		debug  bool
		format string
		want   slog.Level
	}{
		{"default", false, false, "text", slog.LevelInfo},
		{"debug", false, true, "text", slog.LevelDebug},
		{"quiet", true, false, "json", slog.LevelError},
		{"debug wins over quiet", true, true, "text", slog.LevelDebug},
		{"unknown format falls back to text", false, false, "yaml", slog.LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			quiet, debug, logFormat = tc.quiet, tc.debug, tc.format
			initLogging()
			assert.Equal(t, tc.want, logLevel.Level())
		})
	}
}

func TestInitLogging_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "danex.log")
	logFile = path
	defer func() {
		logFile = ""
		initLogging()
	}()

	initLogging()
	slog.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestParseTarget(t *testing.T) {
	domain, port, protocol, err := parseTarget("Example.COM.", "443", " TCP ")
	require.NoError(t, err)
	assert.Equal(t, "example.com", domain)
	assert.Equal(t, uint16(443), port)
	assert.Equal(t, "tcp", protocol)

	domain, _, _, err = parseTarget("bücher.example", "25", "tcp")
	require.NoError(t, err)
	assert.Equal(t, "xn--bcher-kva.example", domain)
}

func TestParseTarget_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		port     string
		protocol string
	}{
		{"empty domain", "", "443", "tcp"},
		{"port zero", "example.com", "0", "tcp"},
		{"port too large", "example.com", "65536", "tcp"},
		{"port not a number", "example.com", "https", "tcp"},
		{"negative port", "example.com", "-1", "tcp"},
		{"empty protocol", "example.com", "443", "  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := parseTarget(tc.domain, tc.port, tc.protocol)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRootCmd_ArgumentCount(t *testing.T) {
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"example.com", "443"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitVerifyFailed, exitCode(err))

	assert.Contains(t, stderr.String(), "Usage:")
	assert.Contains(t, stderr.String(), "danex <domain> <port> <protocol>")
	assert.Empty(t, stdout.String())
}

func TestRootCmd_NoUsageOnOtherErrors(t *testing.T) {
	out, err := executeCommand(t, context.Background(), "example.com", "0", "tcp", "--quiet")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotContains(t, out, "Usage:")
}

func TestRootCmd_InvalidFormat(t *testing.T) {
	_, err := executeCommand(t, context.Background(), "example.com", "443", "tcp", "--format", "xml", "--quiet")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func matchOutcome(status verify.Status) verify.Outcome {
	return verify.Outcome{
		RecordInfo: &verify.RecordInfo{
			Usage:        "DANE_EE",
			UsageCode:    3,
			Selector:     "SUBJECT_PUBLIC_KEY_INFO",
			SelectorCode: 1,
			MatchingType: "SHA256",
			Data:         "abcd",
		},
		Status:  status,
		Matches: status == verify.StatusMatch,
	}
}

func TestPrintReport(t *testing.T) {
	tests := []struct {
		name   string
		report *verify.Report
		want   []string
		absent []string
	}{
		{
			name:   "no records",
			report: &verify.Report{Trusted: true},
			want:   []string{"0 TLSA records found.\n", "did NOT match any TLSA record"},
			absent: []string{"UNTRUSTED", "INVALID"},
		},
		{
			name: "single trusted match",
			report: &verify.Report{
				Trusted:     true,
				RecordCount: 1,
				Records:     []verify.Outcome{matchOutcome(verify.StatusMatch)},
				AnyMatch:    true,
			},
			want:   []string{"1 TLSA record found.\n", "DANE_EE SUBJECT_PUBLIC_KEY_INFO SHA256 abcd", "matches at least one of the TLSA records"},
			absent: []string{"UNTRUSTED"},
		},
		{
			name: "untrusted no match",
			report: &verify.Report{
				RecordCount: 2,
				Records:     []verify.Outcome{matchOutcome(verify.StatusNoMatch), matchOutcome(verify.StatusNoMatch)},
			},
			want: []string{"2 TLSA records found. (UNTRUSTED)", "did NOT match any TLSA record"},
		},
		{
			name: "only invalid records",
			report: &verify.Report{
				Trusted:     true,
				RecordCount: 2,
				Records: []verify.Outcome{
					{Status: verify.StatusParseError, Error: "bad rdata"},
					{RecordInfo: &verify.RecordInfo{Usage: "INVALID", Selector: "SUBJECT_PUBLIC_KEY_INFO", MatchingType: "SHA256"}, Status: verify.StatusInvalid, Error: "unknown usage"},
				},
			},
			want:   []string{"<unparsable TLSA record: bad rdata>", "(unknown usage)", "INVALID TLSA records received."},
			absent: []string{"did NOT match"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			printReport(&buf, tc.report)
			for _, s := range tc.want {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tc.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestPrintReport_EvaluatedRecords(t *testing.T) {
	report := verify.Evaluate(&dane.LookupResult{
		Trusted: true,
		Entries: []dane.Entry{
			{Record: dane.NewTLSARecord(make([]byte, 32), 3, 1, 1)},
			{Record: dane.NewTLSARecord(make([]byte, 32), 9, 1, 1)},
		},
	}, nil)

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "2 TLSA records found.\n")
	assert.Contains(t, out, "DANE_EE SUBJECT_PUBLIC_KEY_INFO SHA256 ")
	assert.Contains(t, out, "INVALID SUBJECT_PUBLIC_KEY_INFO SHA256 ")
	assert.Contains(t, out, "did NOT match any TLSA record")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"numRecs": 2}))
	assert.Equal(t, "{\n  \"numRecs\": 2\n}\n", buf.String())
}
