// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-danex/pkg/noiseproto"
)

// defaultKeyFile is the default path of the service static key.
const defaultKeyFile = "danex-doctor.key"

// keyCmd is the parent command for service key management.
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Service key management",
	Long: `Tools for the Curve25519 static key that identifies the verification
service. Clients pin the public half with 'danex query --server-key'.`,
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a service static keypair",
	Long: `Generate a new Curve25519 static keypair. The private key is written
hex-encoded to the output file, which must not exist yet. The public key is
printed on stdout.`,
	Args: cobra.NoArgs,
	RunE: runKeyGenerate,
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the public key from a key file",
	Args:  cobra.NoArgs,
	RunE:  runKeyShow,
}

func init() {
	keyCmd.AddCommand(keyGenerateCmd)
	keyCmd.AddCommand(keyShowCmd)

	keyGenerateCmd.Flags().String("output", defaultKeyFile, "output file path for the private key")
	keyShowCmd.Flags().String("key-file", defaultKeyFile, "path to hex-encoded private key file")
}

func runKeyGenerate(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		return fmt.Errorf("%w: --output is required", ErrInvalidInput)
	}

	key, err := noiseproto.GenerateStaticKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyOperation, err)
	}
	defer noiseproto.WipeDHKey(key)

	if err := noiseproto.WriteStaticKeyFile(outputPath, key); err != nil {
		return fmt.Errorf("%w: %w", ErrFileOperation, err)
	}

	slog.Info("private key written", "path", outputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\n", noiseproto.PublicKeyHex(key))
	return nil
}

func runKeyShow(cmd *cobra.Command, args []string) error {
	keyFile, _ := cmd.Flags().GetString("key-file")
	if keyFile == "" {
		return fmt.Errorf("%w: --key-file is required", ErrInvalidInput)
	}

	key, err := noiseproto.ReadStaticKeyFile(keyFile)
	if err != nil {
		if errors.Is(err, noiseproto.ErrInvalidKeySize) {
			return fmt.Errorf("%w: %w", ErrKeyOperation, err)
		}
		return fmt.Errorf("%w: %w", ErrFileOperation, err)
	}
	defer noiseproto.WipeDHKey(key)

	fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\n", noiseproto.PublicKeyHex(key))
	return nil
}
