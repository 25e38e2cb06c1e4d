// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-danex/pkg/dane"
)

// generateCmd generates TLSA records from a certificate file.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate TLSA record(s) for DNS publishing",
	Long: `Generate TLSA record(s) from a PEM-encoded certificate file for DNS zone
publishing. By default, generates a single DANE-EE (3), SPKI (1), SHA-256 (1)
record. Use --all to generate every selector and hash combination for the
chosen usage.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("cert-file", "", "path to PEM certificate file (required)")
	generateCmd.Flags().String("hostname", "", "hostname for the TLSA record (required)")
	generateCmd.Flags().Int("port", defaultPort, "port number for the TLSA record")
	generateCmd.Flags().String("protocol", defaultProtocol, "transport protocol for the TLSA record")
	generateCmd.Flags().Int("usage", int(dane.UsageDANEEE), "TLSA usage (0=PKIX-TA, 1=PKIX-EE, 2=DANE-TA, 3=DANE-EE)")
	generateCmd.Flags().Int("selector", int(dane.SelectorSPKI), "TLSA selector (0=full cert, 1=SPKI)")
	generateCmd.Flags().Int("matching-type", int(dane.MatchingSHA256), "TLSA matching type (0=exact, 1=SHA-256, 2=SHA-512)")
	generateCmd.Flags().Bool("all", false, "generate all selector and matching type combinations")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	certFile, _ := cmd.Flags().GetString("cert-file")
	hostname, _ := cmd.Flags().GetString("hostname")
	port, _ := cmd.Flags().GetInt("port")
	protocol, _ := cmd.Flags().GetString("protocol")
	usage, _ := cmd.Flags().GetInt("usage")
	selector, _ := cmd.Flags().GetInt("selector")
	matchingType, _ := cmd.Flags().GetInt("matching-type")
	all, _ := cmd.Flags().GetBool("all")

	if certFile == "" {
		return fmt.Errorf("%w: --cert-file is required", ErrInvalidInput)
	}
	if hostname == "" {
		return fmt.Errorf("%w: --hostname is required", ErrInvalidInput)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidInput, port)
	}

	cert, err := loadCertFromPEMFile(certFile)
	if err != nil {
		return err
	}

	slog.Debug("generating TLSA records", "cert_file", certFile, "hostname", hostname, "port", port, "all", all)

	var records []*dane.TLSARecordString
	if all {
		records, err = dane.GenerateCommonTLSARecords(cert, hostname, uint16(port), protocol, dane.Usage(usage))
	} else {
		var rec *dane.TLSARecordString
		rec, err = dane.GenerateTLSARecordFull(cert, hostname, uint16(port), protocol,
			dane.Usage(usage), dane.Selector(selector), dane.MatchingType(matchingType))
		records = append(records, rec)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	for _, rec := range records {
		fmt.Fprintln(cmd.OutOrStdout(), rec.ZoneLine)
	}
	return nil
}

// loadCertFromPEMFile reads and parses the first PEM-encoded certificate
// in a file.
func loadCertFromPEMFile(certFile string) (*x509.Certificate, error) {
	data, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFileOperation, certFile, err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%w: no PEM certificate found in %s", ErrInvalidInput, certFile)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing certificate: %w", ErrInvalidInput, err)
	}
	return cert, nil
}
