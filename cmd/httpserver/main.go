package main

import (
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/tradelane/trade-finance-backend/cmd/flags"
	"github.com/tradelane/trade-finance-backend/escrow"
	"github.com/tradelane/trade-finance-backend/httpserver"
	"github.com/tradelane/trade-finance-backend/interfaces"
	"github.com/tradelane/trade-finance-backend/registry"
	"github.com/tradelane/trade-finance-backend/roleproof"
	"github.com/tradelane/trade-finance-backend/shipment"
	"github.com/tradelane/trade-finance-backend/storage"
)

var serverFlags = append([]cli.Flag{
	flags.RpcAddrFlag,
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:     "trusted-issuer",
		Required: true,
		Usage:    "address of the trusted membership issuer. 0x-prefixed hex",
	},
	&cli.StringFlag{
		Name:     "identity-bridge-contract",
		Required: true,
		Usage:    "identity bridge contract address. 0x-prefixed hex",
	},
	&cli.StringFlag{
		Name:     "revocation-contract",
		Required: true,
		Usage:    "credential revocation registry contract address. 0x-prefixed hex",
	},
	&cli.StringFlag{
		Name:  "escrow-key",
		Usage: "hex private key used to sign escrow transactions; funds operations fail without it",
	},
	&cli.Int64Flag{
		Name:  "chain-id",
		Value: 1,
		Usage: "chain id for escrow transaction signing",
	},
	&cli.StringSliceFlag{
		Name:  "storage",
		Value: cli.NewStringSlice("memory://"),
		Usage: "document-content storage location URIs (file://, s3://, ipfs://, vault://, memory://); repeatable",
	},
	&cli.Int64Flag{
		Name:  "session-ttl-minutes",
		Value: 15,
		Usage: "minutes a validated role proof stays cached as a session",
	},
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "trade-finance-server",
		Usage: "Serve the trade-document lifecycle API with delegated role-proof verification",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			trustedIssuer, err := interfaces.NewAddressFromHex(cCtx.String("trusted-issuer"))
			if err != nil {
				logger.Error("Invalid trusted issuer address", "err", err)
				return err
			}
			identityBridgeAddr, err := interfaces.NewAddressFromHex(cCtx.String("identity-bridge-contract"))
			if err != nil {
				logger.Error("Invalid identity bridge address", "err", err)
				return err
			}
			revocationAddr, err := interfaces.NewAddressFromHex(cCtx.String("revocation-contract"))
			if err != nil {
				logger.Error("Invalid revocation registry address", "err", err)
				return err
			}

			rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
			logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
			ethClient, err := ethclient.Dial(rpcAddress)
			if err != nil {
				logger.Error("Failed to dial RPC", "err", err)
				return err
			}

			identityBridge, err := registry.NewIdentityBridgeClient(ethClient, identityBridgeAddr)
			if err != nil {
				logger.Error("Failed to create identity bridge client", "err", err)
				return err
			}
			revocation, err := registry.NewRevocationRegistryClient(ethClient, revocationAddr)
			if err != nil {
				logger.Error("Failed to create revocation registry client", "err", err)
				return err
			}

			ledger, err := escrow.NewLedgerClient(ethClient)
			if err != nil {
				logger.Error("Failed to create escrow ledger client", "err", err)
				return err
			}
			if escrowKeyHex := cCtx.String("escrow-key"); escrowKeyHex != "" {
				escrowKey, err := crypto.HexToECDSA(escrowKeyHex)
				if err != nil {
					logger.Error("Invalid escrow key", "err", err)
					return err
				}
				auth, err := bind.NewKeyedTransactorWithChainID(escrowKey, big.NewInt(cCtx.Int64("chain-id")))
				if err != nil {
					logger.Error("Failed to create escrow transactor", "err", err)
					return err
				}
				ledger.SetTransactOpts(auth)
			} else {
				logger.Warn("No escrow key configured, funds operations will fail")
			}

			storageFactory := storage.NewFactory(logger)
			locations := make([]interfaces.StorageBackendLocation, 0)
			for _, uri := range cCtx.StringSlice("storage") {
				locations = append(locations, interfaces.StorageBackendLocation(uri))
			}
			contentStorage, err := storageFactory.CreateMultiBackend(locations)
			if err != nil {
				logger.Error("Failed to create document-content storage", "err", err)
				return err
			}
			logger.Info("Document-content storage configured", "location", string(contentStorage.LocationURI()))

			validator := roleproof.NewValidator(identityBridge, revocation, trustedIssuer, logger)
			sessionTTL := time.Duration(cCtx.Int64("session-ttl-minutes")) * time.Minute
			auth := roleproof.NewService(validator, roleproof.NewSessionCache(sessionTTL))

			shipments := shipment.NewService(shipment.NewRepository(), ledger, logger)

			handler := httpserver.NewHandler(auth, shipments, contentStorage, logger)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
