package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bnema/gasmorph/internal/adapters/chain"
	"github.com/bnema/gasmorph/internal/adapters/signer"
	"github.com/bnema/gasmorph/internal/config"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
)

const (
	jwtSecretBytes  = 32
	shutdownTimeout = 10 * time.Second
)

func newSignerCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signer",
		Short: "Run or query the privileged signer service",
	}

	cmd.AddCommand(
		newSignerServeCmd(app),
		newSignerAddressCmd(app),
	)

	return cmd
}

func newSignerServeCmd(app *app) *cobra.Command {
	var initSecret bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sponsored submissions with the privileged key",
		Long: "Holds the privileged key in this process and accepts signer_submit calls over JWT-authenticated JSON-RPC. " +
			"Settings come from GASMORPH_SIGNER_LISTEN, GASMORPH_SIGNER_KEY_REF and GASMORPH_SIGNER_JWT_SECRET_REF.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadSignerServe()
			if err != nil {
				return err
			}

			key, err := app.wallet.LoadKey(cmd.Context(), settings.KeyRef)
			if err != nil {
				return fmt.Errorf("load signer key: %w", err)
			}
			secret, err := loadJWTSecret(cmd.Context(), app.secretStore, settings.JWTSecretRef, initSecret)
			if err != nil {
				return err
			}
			backend, err := app.chainBackend(cmd.Context())
			if err != nil {
				return err
			}

			transactor := chain.NewTransactor(backend, key, app.cfg.Network.ChainID, app.cfg.RequestTimeout, log.Root())
			if transactor.From() != app.cfg.Contracts.Owner {
				log.Warn("Signer key is not the configured owner", "signer", transactor.From(), "owner", app.cfg.Contracts.Owner)
			}

			service := signer.NewService(transactor, []common.Address{app.cfg.Contracts.NFT, app.cfg.Contracts.Paymaster}, log.Root())
			handler, stop, err := signer.NewHandler(service, secret)
			if err != nil {
				return err
			}
			defer stop()

			server := &http.Server{
				Addr:              settings.Listen,
				Handler:           handler,
				ReadTimeout:       settings.ReadTimeout,
				ReadHeaderTimeout: settings.ReadTimeout,
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.ListenAndServe()
			}()
			log.Info("Signer listening", "addr", settings.Listen, "signer", transactor.From())

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve signer: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown signer: %w", err)
			}
			log.Info("Signer stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&initSecret, "init-secret", false, "Generate and store the JWT secret when missing")

	return cmd
}

func newSignerAddressCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Ask the running signer service for its address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			address, err := app.remoteSig.Address(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), address.Hex())
			return err
		},
	}
}

func loadJWTSecret(ctx context.Context, store ports.SecretStore, ref string, create bool) ([]byte, error) {
	secret, err := store.Get(ctx, ref)
	if err == nil {
		return []byte(strings.TrimSpace(secret)), nil
	}
	if !create || !errors.Is(err, domain.ErrSecretNotFound) {
		return nil, fmt.Errorf("load signer jwt secret %q: %w", ref, err)
	}

	raw := make([]byte, jwtSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	generated := hex.EncodeToString(raw)
	if err := store.Put(ctx, ref, generated); err != nil {
		return nil, fmt.Errorf("store jwt secret: %w", err)
	}
	log.Info("Generated signer JWT secret", "ref", ref)

	return []byte(generated), nil
}
