// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-danex/pkg/dane"
	"github.com/jeremyhahn/go-danex/pkg/verify"
)

const (
	// defaultPort is the default TLS port for TLSA records.
	defaultPort = 443

	// defaultProtocol is the default transport label for TLSA records.
	defaultProtocol = "tcp"
)

// showCmd displays TLSA records without contacting the server.
var showCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Display TLSA records for a domain",
	Long: `Query and display the TLSA records published at _<port>._<protocol>.<domain>
together with the DNSSEC status of the answer. The server itself is not
contacted.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().Int("port", defaultPort, "port number of the service")
	showCmd.Flags().String("protocol", defaultProtocol, "transport protocol of the service")
}

func runShow(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	protocol, _ := cmd.Flags().GetString("protocol")

	if err := validateFormat(); err != nil {
		return err
	}
	domain, p, protocol, err := parseTarget(args[0], strconv.Itoa(port), protocol)
	if err != nil {
		return err
	}

	resolver, err := dane.NewDNSResolver(resolverConfig(), slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	result, err := resolver.Lookup(ctx, domain, p, protocol)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	report := verify.Evaluate(result, nil)
	report.Domain = domain
	report.Port = p
	report.Protocol = protocol

	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	printRecords(cmd.OutOrStdout(), report)
	return nil
}
