package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"didlab/pkg/domain"
	"didlab/pkg/envelope"
	"didlab/pkg/fingerprint"
	"didlab/pkg/secrets"
)

// PassphraseEnv is read when --passphrase is not given.
const PassphraseEnv = "DIDLAB_PASSPHRASE"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "credtool",
		Short:         "Fingerprint and seal DID Lab credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newFingerprintCmd(),
		newSealCmd(),
		newOpenCmd(),
		newAPIKeyCmd(),
	)
	return root
}

func newFingerprintCmd() *cobra.Command {
	var showCanonical bool
	cmd := &cobra.Command{
		Use:   "fingerprint [file]",
		Short: "Print the Keccak-256 fingerprint of a JSON document",
		Long:  "Reads a JSON document from file, or stdin when omitted or \"-\", canonicalizes it and prints its fingerprint.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			canonical, err := fingerprint.Canonicalize(raw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showCanonical {
				fmt.Fprintln(out, canonical) //nolint:errcheck // stdout
			}
			fmt.Fprintln(out, fingerprint.Of(canonical)) //nolint:errcheck // stdout
			return nil
		},
	}
	cmd.Flags().BoolVar(&showCanonical, "canonical", false, "also print the canonical form")
	return cmd
}

// sealedRequest is ready to POST to /credentials/issue.
type sealedRequest struct {
	SubjectAddress    string             `json:"subjectAddress,omitempty"`
	ClientFingerprint string             `json:"clientFingerprint"`
	EncryptedBlob     *envelope.Envelope `json:"encryptedBlob"`
	FriendlyName      string             `json:"friendlyName,omitempty"`
}

func newSealCmd() *cobra.Command {
	var (
		passphrase string
		subject    string
		name       string
		iterations int
	)
	cmd := &cobra.Command{
		Use:   "seal [file]",
		Short: "Encrypt a JSON document and print an issue request body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := resolvePassphrase(passphrase)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			fp, err := fingerprint.FromJSON(raw)
			if err != nil {
				return err
			}
			req := sealedRequest{ClientFingerprint: fp.String(), FriendlyName: name}
			if subject != "" {
				addr, err := domain.ParseAddress(subject)
				if err != nil {
					return err
				}
				req.SubjectAddress = addr.String()
			}
			if req.EncryptedBlob, err = envelope.Seal(raw, pass, iterations); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(req); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintln(cmd.ErrOrStderr(), "sealed", fp) //nolint:errcheck // status line
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "encryption passphrase (default $"+PassphraseEnv+")")
	cmd.Flags().StringVar(&subject, "subject", "", "subject address to include in the request")
	cmd.Flags().StringVar(&name, "name", "", "friendly name to include in the request")
	cmd.Flags().IntVar(&iterations, "iterations", envelope.DefaultIterations, "PBKDF2 iterations")
	return cmd
}

func newOpenCmd() *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "open [file]",
		Short: "Decrypt an envelope, or the encryptedBlob of an issue request or export entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := resolvePassphrase(passphrase)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			env, err := parseEnvelope(raw)
			if err != nil {
				return err
			}
			plaintext, err := envelope.Open(env, pass)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(plaintext)) //nolint:errcheck // stdout
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "decryption passphrase (default $"+PassphraseEnv+")")
	return cmd
}

func newAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey",
		Short: "Generate an API key and the bcrypt hash to configure on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := secrets.Generate()
			if err != nil {
				return err
			}
			hash, err := secrets.Hash(key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "key: ", key)  //nolint:errcheck // stdout
			fmt.Fprintln(out, "hash:", hash) //nolint:errcheck // stdout
			color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), //nolint:errcheck // status line
				"store the key now; configure the hash as DIDLAB_SECURITY_ISSUE_API_KEY, DIDLAB_SECURITY_REVOKE_API_KEY or DIDLAB_SECURITY_EXPORT_API_KEY")
			return nil
		},
	}
}

// parseEnvelope accepts a bare envelope or any object with an
// encryptedBlob field holding one. An export entry stores the blob as a
// JSON string.
func parseEnvelope(raw []byte) (*envelope.Envelope, error) {
	var wrapper struct {
		EncryptedBlob json.RawMessage `json:"encryptedBlob"`
		Blob          string          `json:"blob"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	switch {
	case len(wrapper.EncryptedBlob) > 0:
		raw = wrapper.EncryptedBlob
	case wrapper.Blob != "":
		raw = []byte(wrapper.Blob)
	}
	return envelope.Parse(raw)
}

func resolvePassphrase(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(PassphraseEnv); env != "" {
		return env, nil
	}
	return "", errors.New("passphrase required: use --passphrase or " + PassphraseEnv)
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
