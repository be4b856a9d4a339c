// The proof_client builds and signs delegated role proofs from raw private
// keys. It is the operational tool for issuing dev credentials and for
// exercising a running server's authenticate endpoint.
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/tradelane/trade-finance-backend/cmd/flags"
	"github.com/tradelane/trade-finance-backend/cryptoutils"
	"github.com/tradelane/trade-finance-backend/httpserver"
	"github.com/tradelane/trade-finance-backend/interfaces"
)

var clientFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "company-key",
		Required: true,
		Usage:    "hex private key of the company (delegator) wallet",
	},
	&cli.StringFlag{
		Name:     "delegate-key",
		Required: true,
		Usage:    "hex private key of the delegate (user) wallet",
	},
	&cli.StringFlag{
		Name:     "issuer-key",
		Required: true,
		Usage:    "hex private key of the trusted membership issuer",
	},
	&cli.StringFlag{
		Name:  "role",
		Value: string(interfaces.RoleViewer),
		Usage: "role to delegate: Viewer, Editor or Signer",
	},
	&cli.StringFlag{
		Name:     "caller-id",
		Required: true,
		Usage:    "platform-native caller identity the proof will be presented with",
	},
	&cli.StringFlag{
		Name:  "delegate-credential-id",
		Value: "0x1111111111111111111111111111111111111111111111111111111111111111",
		Usage: "32-byte delegate credential id hash. 0x-prefixed hex",
	},
	&cli.StringFlag{
		Name:  "delegator-credential-id",
		Value: "0x2222222222222222222222222222222222222222222222222222222222222222",
		Usage: "32-byte delegator credential id hash. 0x-prefixed hex",
	},
	&cli.Int64Flag{
		Name:  "delegate-expiry-hours",
		Value: 24,
		Usage: "delegate credential lifetime in hours",
	},
	&cli.Int64Flag{
		Name:  "delegator-expiry-hours",
		Value: 24 * 30,
		Usage: "delegator credential lifetime in hours",
	},
	&cli.StringFlag{
		Name:  "server-addr",
		Usage: "if set, authenticate against this server and print the session token",
	},
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlag,
}

func buildProof(cCtx *cli.Context) (*interfaces.RoleProof, error) {
	companyKey, err := crypto.HexToECDSA(cCtx.String("company-key"))
	if err != nil {
		return nil, fmt.Errorf("invalid company key: %w", err)
	}
	delegateKey, err := crypto.HexToECDSA(cCtx.String("delegate-key"))
	if err != nil {
		return nil, fmt.Errorf("invalid delegate key: %w", err)
	}
	issuerKey, err := crypto.HexToECDSA(cCtx.String("issuer-key"))
	if err != nil {
		return nil, fmt.Errorf("invalid issuer key: %w", err)
	}

	role, err := interfaces.ParseRole(cCtx.String("role"))
	if err != nil {
		return nil, err
	}
	delegateCredHash, err := interfaces.NewHashFromHex(cCtx.String("delegate-credential-id"))
	if err != nil {
		return nil, fmt.Errorf("invalid delegate credential id: %w", err)
	}
	delegatorCredHash, err := interfaces.NewHashFromHex(cCtx.String("delegator-credential-id"))
	if err != nil {
		return nil, fmt.Errorf("invalid delegator credential id: %w", err)
	}

	delegateExpiry := time.Now().Add(time.Duration(cCtx.Int64("delegate-expiry-hours")) * time.Hour).Unix()
	delegatorExpiry := time.Now().Add(time.Duration(cCtx.Int64("delegator-expiry-hours")) * time.Hour).Unix()

	delegateAddr := cryptoutils.SignerAddress(delegateKey)
	companyAddr := cryptoutils.SignerAddress(companyKey)

	delegateSig, err := cryptoutils.SignPayload(
		cryptoutils.DelegatePayload(delegateAddr, role, delegateCredHash, delegateExpiry), companyKey)
	if err != nil {
		return nil, fmt.Errorf("signing delegate payload: %w", err)
	}
	membershipSig, err := cryptoutils.SignPayload(
		cryptoutils.MembershipPayload(delegatorCredHash, delegatorExpiry, companyAddr), issuerKey)
	if err != nil {
		return nil, fmt.Errorf("signing membership payload: %w", err)
	}

	return &interfaces.RoleProof{
		SignedProof:                 delegateSig,
		Signer:                      companyAddr,
		DelegateAddress:             delegateAddr,
		Role:                        role,
		DelegateCredentialIDHash:    delegateCredHash,
		DelegateCredentialExpiresAt: delegateExpiry,
		Membership: interfaces.MembershipProof{
			SignedProof:                  membershipSig,
			Issuer:                       cryptoutils.SignerAddress(issuerKey),
			DelegatorAddress:             companyAddr,
			DelegatorCredentialIDHash:    delegatorCredHash,
			DelegatorCredentialExpiresAt: delegatorExpiry,
		},
	}, nil
}

func authenticate(serverAddr, callerID, proofHeader string) error {
	req, err := http.NewRequest(http.MethodPost, serverAddr+"/api/auth", nil)
	if err != nil {
		return err
	}
	req.Header.Set(httpserver.CallerIDHeader, callerID)
	req.Header.Set(httpserver.RoleProofHeader, proofHeader)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("authenticate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authenticate rejected (%d): %s", resp.StatusCode, string(body))
	}

	fmt.Println(string(body))
	return nil
}

func main() {
	app := &cli.App{
		Name:  "proof-client",
		Usage: "Build and sign a delegated role proof, optionally authenticating against a server",
		Flags: clientFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			proof, err := buildProof(cCtx)
			if err != nil {
				logger.Error("Failed to build proof", "err", err)
				return err
			}

			raw, err := json.MarshalIndent(proof, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(raw))

			proofHeader := base64.StdEncoding.EncodeToString(raw)
			fmt.Printf("\n%s: %s\n", httpserver.RoleProofHeader, proofHeader)

			if serverAddr := cCtx.String("server-addr"); serverAddr != "" {
				return authenticate(serverAddr, cCtx.String("caller-id"), proofHeader)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
