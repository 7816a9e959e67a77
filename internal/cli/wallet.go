package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/usexrp/agentwallet/internal/secrets"
	"github.com/usexrp/agentwallet/internal/service"
	"github.com/usexrp/agentwallet/internal/signer"
)

var errAlreadyConfigured = errors.New("wallet already configured; run \"walletctl reset --yes\" first")

func newInitCmd(app *app) *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a new seed and store it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.ensureEmpty(cmd.Context()); err != nil {
				return err
			}

			seed, err := signer.GenerateSeed(signer.Algorithm(strings.ToLower(algorithm)))
			if err != nil {
				return err
			}
			kp, err := app.save(cmd.Context(), seed.Encode())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "created %s wallet %s\n", kp.Algorithm(), kp.Address())
			// Shown once; there is no command that prints it again.
			_, _ = fmt.Fprintf(out, "seed: %s\n", seed.Encode())
			_, _ = fmt.Fprintln(out, "write the seed down offline, then fund the address with at least the base reserve")
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", string(signer.Ed25519), "key algorithm: ed25519 or secp256k1")
	return cmd
}

func newImportCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Store an existing seed read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.ensureEmpty(cmd.Context()); err != nil {
				return err
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read seed: %w", err)
				}
				return errors.New("no seed on stdin")
			}
			encoded := strings.TrimSpace(scanner.Text())
			if encoded == "" {
				return errors.New("no seed on stdin")
			}

			kp, err := app.save(cmd.Context(), encoded)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %s wallet %s\n", kp.Algorithm(), kp.Address())
			return nil
		},
	}
}

func newAddressCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the wallet address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kp, err := service.NewStoreKeySource(app.store).Keypair(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), kp.Address())
			return err
		},
	}
}

type walletStatus struct {
	Store      string `json:"store"`
	Encrypted  bool   `json:"encrypted"`
	Configured bool   `json:"configured"`
	Address    string `json:"address,omitempty"`
	Algorithm  string `json:"algorithm,omitempty"`
}

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the seed lives and whether it is usable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := walletStatus{
				Store:     app.store.Path(),
				Encrypted: app.store.Encrypted(),
			}

			kp, err := service.NewStoreKeySource(app.store).Keypair(cmd.Context())
			switch {
			case err == nil:
				status.Configured = true
				status.Address = kp.Address()
				status.Algorithm = string(kp.Algorithm())
			case errors.Is(err, service.ErrWalletNotConfigured):
			default:
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "store: %s\n", status.Store)
			if status.Encrypted {
				_, _ = fmt.Fprintln(out, "protection: os keyring")
			} else {
				_, _ = fmt.Fprintln(out, "protection: none (keyring unavailable)")
			}
			if !status.Configured {
				_, _ = fmt.Fprintln(out, "wallet: not configured")
				return nil
			}
			_, _ = fmt.Fprintf(out, "wallet: %s (%s)\n", status.Address, status.Algorithm)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")
	return cmd
}

func newResetCmd(app *app) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored seed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errors.New("refusing to delete the seed without --yes")
			}
			for _, key := range []string{secrets.KeySeed, secrets.KeyAddress} {
				if err := app.store.Delete(cmd.Context(), key); err != nil {
					return fmt.Errorf("delete %s: %w", key, err)
				}
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "wallet removed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm deletion")
	return cmd
}

func (a *app) ensureEmpty(ctx context.Context) error {
	_, err := a.store.Get(ctx, secrets.KeySeed)
	switch {
	case err == nil:
		return errAlreadyConfigured
	case errors.Is(err, secrets.ErrNotFound):
		return nil
	default:
		return err
	}
}

// save validates the seed by deriving from it before anything is written.
func (a *app) save(ctx context.Context, encoded string) (*signer.Keypair, error) {
	kp, err := signer.KeypairFromSeed(encoded)
	if err != nil {
		return nil, err
	}
	if err := a.store.Set(ctx, secrets.KeySeed, encoded); err != nil {
		return nil, fmt.Errorf("store seed: %w", err)
	}
	if err := a.store.Set(ctx, secrets.KeyAddress, kp.Address()); err != nil {
		return nil, fmt.Errorf("store address: %w", err)
	}
	return kp, nil
}
