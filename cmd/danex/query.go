// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-danex/pkg/certfetch"
	"github.com/jeremyhahn/go-danex/pkg/noiseproto"
	"github.com/jeremyhahn/go-danex/pkg/noiseproto/doctor"
	"github.com/jeremyhahn/go-danex/pkg/verify"
)

// queryCmd asks a running verification service to check a domain.
var queryCmd = &cobra.Command{
	Use:   "query <domain>",
	Short: "Ask a verification service to check a domain",
	Long: `Connect to a danex verification service over an encrypted Noise_NK
channel and ask it to check the certificate served on port 443 of <domain>
against the domain's TLSA records. The service identity is pinned with
--server-key, as printed by 'danex key generate' or 'danex serve'.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("addr", "127.0.0.1"+doctor.DefaultListenAddr, "service address (host:port)")
	queryCmd.Flags().String("server-key", "", "hex-encoded service static public key (required)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	serverKeyHex, _ := cmd.Flags().GetString("server-key")

	if err := validateFormat(); err != nil {
		return err
	}
	if serverKeyHex == "" {
		return fmt.Errorf("%w: --server-key is required", ErrInvalidInput)
	}
	serverKey, err := noiseproto.DecodePublicKey(serverKeyHex)
	if err != nil {
		return fmt.Errorf("%w: --server-key: %w", ErrInvalidInput, err)
	}
	domain, err := certfetch.EncodeHost(strings.TrimSpace(args[0]))
	if err != nil {
		return fmt.Errorf("%w: domain %q: %w", ErrInvalidInput, args[0], err)
	}

	client, err := doctor.NewClient(&doctor.ClientConfig{
		ServerAddr:       addr,
		ServerStaticKey:  serverKey,
		OperationTimeout: timeout,
		Logger:           slog.Default(),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	payload, err := client.Verify(ctx, domain)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), payload)
	}
	printPayload(cmd.OutOrStdout(), payload)
	return nil
}

// printPayload writes the service answer in the same shape as a local
// verification.
func printPayload(w io.Writer, p *verify.Payload) {
	trust := "trusted"
	if !p.Trusted {
		trust = "untrusted"
	}
	fmt.Fprintf(w, "%d TLSA record(s), %s answer.\n", p.NumRecs, trust)
	for _, rec := range p.TLSARecords {
		switch {
		case rec.Usage == "":
			fmt.Fprintf(w, "  error: %s\n", rec.Error)
		case rec.Error != "":
			fmt.Fprintf(w, "  %s %s %s: error: %s\n", rec.Usage, rec.Selector, rec.MatchingType, rec.Error)
		case rec.Matches:
			fmt.Fprintf(w, "  %s %s %s: match\n", rec.Usage, rec.Selector, rec.MatchingType)
		default:
			fmt.Fprintf(w, "  %s %s %s: no match\n", rec.Usage, rec.Selector, rec.MatchingType)
		}
	}
	if p.DoesMatch {
		fmt.Fprintln(w, "The server-sent certificate matches at least one of the TLSA records.")
	} else {
		fmt.Fprintln(w, "The server-sent certificate did NOT match any TLSA record.")
	}
}
