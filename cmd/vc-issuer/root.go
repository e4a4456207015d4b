package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/document"
	"github.com/pilacorp/go-vc-issuer/credential/common/dto"
	"github.com/pilacorp/go-vc-issuer/credential/common/keystore"
	"github.com/pilacorp/go-vc-issuer/credential/common/processor"
	"github.com/pilacorp/go-vc-issuer/credential/common/rdf"
	verificationmethod "github.com/pilacorp/go-vc-issuer/credential/common/verification-method"
	"github.com/pilacorp/go-vc-issuer/issuer"
	"github.com/pilacorp/go-vc-issuer/issuer/api"
	"github.com/pilacorp/go-vc-issuer/issuer/config"
	"github.com/pilacorp/go-vc-issuer/issuer/log"
	"github.com/pilacorp/go-vc-issuer/issuer/metrics"
)

const shutdownTimeout = 10 * time.Second

var stdInReader io.Reader = os.Stdin

func createRootCommand(cfg *config.Config) *cobra.Command {
	command := &cobra.Command{
		Use:           "vc-issuer",
		Short:         "Verifiable Credential issuer: URDNA2015 normalization, hashing and Linked Data proof signing.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.Load(cmd.Root().PersistentFlags())
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}
	command.PersistentFlags().AddFlagSet(config.FlagSet())
	return command
}

func createServerCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Starts the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.Logger()
			logger.Info("Starting server with config:")
			logger.Info(cfg.PrintConfig())

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			service := newService(cfg, metrics.New(reg))
			server := api.NewServer(service, api.ServerConfig{BodyLimit: cfg.HTTP.BodyLimit, Gatherer: reg})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errs := make(chan error, 1)
			go func() {
				logger.WithField("address", cfg.HTTP.Address).Info("HTTP server listening")
				errs <- server.Start(cfg.HTTP.Address)
			}()

			select {
			case err := <-errs:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("HTTP server stopped due to error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func createNormalizeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Prints the SHA-256 of the URDNA2015 canonical form of a JSON-LD document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			digest, err := newService(cfg, nil).Normalize(cmd.Context(), doc)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest.Hex())
			return err
		},
	}
}

func createSignCommand(cfg *config.Config) *cobra.Command {
	var options dto.ProofOptions
	command := &cobra.Command{
		Use:   "sign <file|->",
		Short: "Signs a credential with the configured key and prints it with its proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			signed, err := newService(cfg, nil).Sign(cmd.Context(), issuer.SignRequest{
				Document:           doc,
				VerificationMethod: options.VerificationMethod,
				Options:            options,
			})
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(signed, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	command.Flags().StringVar(&options.VerificationMethod, "verification-method", "", "Verification method (DID URL) of the issuer key")
	command.Flags().StringVar(&options.Type, "type", "", "Proof type, overrides proof.type")
	command.Flags().StringVar(&options.ProofPurpose, "purpose", "", "Proof purpose, overrides proof.purpose")
	command.Flags().StringVar(&options.Cryptosuite, "cryptosuite", "", "Cryptosuite of a DataIntegrityProof")
	command.Flags().StringVar(&options.Created, "created", "", "Proof creation time (RFC 3339), defaults to now")
	command.Flags().StringVar(&options.Challenge, "challenge", "", "Proof challenge")
	command.Flags().StringVar(&options.Domain, "domain", "", "Proof domain")
	_ = command.MarkFlagRequired("verification-method")
	return command
}

func createKeygenCommand(cfg *config.Config) *cobra.Command {
	var family string
	var force bool
	command := &cobra.Command{
		Use:   "keygen",
		Short: "Generates a private key and writes it as PEM to the configured key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := crypto.ParseFamily(family)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Key.File); err == nil && !force {
				return fmt.Errorf("key file %s already exists, use --force to overwrite", cfg.Key.File)
			}
			key, err := crypto.GenerateKey(f)
			if err != nil {
				return err
			}
			encoded, err := crypto.MarshalPrivateKey(key)
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfg.Key.File, encoded, 0o600); err != nil {
				return fmt.Errorf("failed to write key file: %w", err)
			}
			jwk, err := crypto.PublicJWK(key)
			if err != nil {
				return err
			}
			out, err := json.Marshal(jwk)
			if err != nil {
				return err
			}
			cmd.Printf("Generated %s key in %s\n", key.Family(), cfg.Key.File)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	command.Flags().StringVar(&family, "family", crypto.FamilySecp256k1.String(), "Key family (P-256, P-384, P-521, secp256k1, Ed25519, RSA)")
	command.Flags().BoolVar(&force, "force", false, "Overwrite an existing key file")
	return command
}

func createPrintConfigCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the current config",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Current config")
			fmt.Fprintln(cmd.OutOrStdout(), cfg.PrintConfig())
		},
	}
}

// CreateCommand creates the command with all subcommands.
func CreateCommand(cfg *config.Config) *cobra.Command {
	command := createRootCommand(cfg)
	command.AddCommand(
		createServerCommand(cfg),
		createNormalizeCommand(cfg),
		createSignCommand(cfg),
		createKeygenCommand(cfg),
		createPrintConfigCommand(cfg),
	)
	return command
}

// newService wires the pipeline from the loaded config. m may be nil.
func newService(cfg *config.Config, m *metrics.Metrics) *issuer.Service {
	p := processor.NewProcessor(
		processor.WithDocumentLoader(rdf.NewContextLoader(cfg.JSONLD)),
		processor.WithBudget(cfg.Canonicalization),
	)
	keys := keystore.NewFileKey(cfg.Key.File, keystore.WithLogger(log.KeyLogger()))
	opts := []issuer.Option{
		issuer.WithProcessor(p),
		issuer.WithDefaults(cfg.Proof.Type, cfg.Proof.Purpose),
		issuer.WithMetrics(m),
	}
	if cfg.DID.ResolverURL != "" {
		opts = append(opts, issuer.WithVerificationMethodChecker(verificationmethod.NewResolver(cfg.DID.ResolverURL)))
		log.Logger().WithField("resolver", cfg.DID.ResolverURL).Debug("Verification method check enabled")
	}
	return issuer.NewService(keys, opts...)
}

// readDocument reads a JSON document from a file, or from stdin when path is "-".
func readDocument(path string) (*document.Value, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdInReader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return document.Parse(data)
}

// Execute runs the command line.
func Execute(ctx context.Context, args []string) error {
	command := CreateCommand(config.NewConfig())
	command.SetArgs(args)
	if err := command.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("Command failed")
		return err
	}
	return nil
}
