package main

import (
	"log"
	"os"

	"github.com/left-curve/dango-sdk-go/pkg/config"
	"github.com/urfave/cli/v2"
)

const EnvDangoKeyringPassword = "DANGO_KEYRING_PASSWORD"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dango",
		Usage: "Build, sign and submit Dango transactions",
		Description: `A command line wallet for Dango chains.

It can:
- derive account addresses and registration salts
- manage an encrypted local keyring
- simulate and submit transfers and contract calls
- create delegated session keys
- inspect AWS KMS signing keys`,
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:    "transport",
				Usage:   "Transport to use: node or indexer",
				EnvVars: []string{config.EnvDangoTransport},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "CometBFT RPC URL",
				EnvVars: []string{config.EnvDangoRPCURL},
			},
			&cli.StringFlag{
				Name:    "indexer-url",
				Usage:   "Indexer GraphQL URL",
				EnvVars: []string{config.EnvDangoIndexerURL},
			},
			&cli.StringFlag{
				Name:    "chain-id",
				Usage:   "Chain id override; skips the status query",
				EnvVars: []string{config.EnvDangoChainID},
			},
			&cli.StringFlag{
				Name:    "keyring-dir",
				Usage:   "Directory holding encrypted keys",
				EnvVars: []string{config.EnvDangoKeyringDir},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Usage:   "Session store: memory, badger or redis",
				EnvVars: []string{config.EnvDangoPersistence},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvDangoDataPath},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvDangoDebug},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show chain id and latest block",
				Action: statusCommand,
			},
			{
				Name:  "address",
				Usage: "Address helpers",
				Subcommands: []*cli.Command{
					{
						Name:  "compute",
						Usage: "Predict the address of a contract",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "deployer", Usage: "Deployer address", Required: true},
							&cli.StringFlag{Name: "code-hash", Usage: "Code hash (hex)", Required: true},
							&cli.StringFlag{Name: "salt", Usage: "Salt (hex)", Required: true},
						},
						Action: addressComputeCommand,
					},
					{
						Name:      "validate",
						Usage:     "Check that an address is well formed",
						ArgsUsage: "<address>",
						Action:    addressValidateCommand,
					},
				},
			},
			{
				Name:  "salt",
				Usage: "Encode an account registration salt",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.IntFlag{Name: "index", Usage: "Account index (index mode)", Value: -1},
					&cli.StringFlag{Name: "key-hash", Usage: "Key hash (key-hash mode)"},
					&cli.StringFlag{Name: "key-type", Usage: "secp256r1, secp256k1, ethereum or ed25519", Value: "secp256k1"},
					&cli.StringFlag{Name: "public-key", Usage: "Public key (base64)"},
				},
				Action: saltCommand,
			},
			{
				Name:  "keys",
				Usage: "Manage the encrypted keyring",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Add a key: generated, from a mnemonic or from a raw secp256k1 key",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true},
							passwordFlag(),
							&cli.StringFlag{Name: "mnemonic", Usage: "BIP-39 mnemonic to derive from"},
							&cli.StringFlag{Name: "path", Usage: "Derivation path (default m/44'/60'/0'/0/0)"},
							&cli.StringFlag{Name: "private-key", Usage: "Raw secp256k1 private key (hex)"},
							&cli.BoolFlag{Name: "ed25519", Usage: "Generate an ed25519 key instead of secp256k1"},
						},
						Action: keysAddCommand,
					},
					{
						Name:   "show",
						Usage:  "Show a stored key without decrypting it",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "name", Required: true}},
						Action: keysShowCommand,
					},
					{
						Name:   "list",
						Usage:  "List stored keys",
						Action: keysListCommand,
					},
					{
						Name:   "delete",
						Usage:  "Delete a stored key",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "name", Required: true}},
						Action: keysDeleteCommand,
					},
				},
			},
			{
				Name:   "transfer",
				Usage:  "Send coins",
				Flags:  append(txFlags(), &cli.StringFlag{Name: "to", Required: true}, &cli.StringFlag{Name: "coins", Usage: "denom=amount[,denom=amount]", Required: true}),
				Action: transferCommand,
			},
			{
				Name:  "execute",
				Usage: "Execute a contract",
				Flags: append(txFlags(),
					&cli.StringFlag{Name: "contract", Required: true},
					&cli.StringFlag{Name: "msg", Usage: "Execute message (JSON)", Required: true},
					&cli.StringFlag{Name: "funds", Usage: "denom=amount[,denom=amount]"},
				),
				Action: executeCommand,
			},
			{
				Name:  "simulate",
				Usage: "Dry-run messages and report gas",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sender", Required: true},
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "msgs", Usage: "Messages (JSON array)", Required: true},
				},
				Action: simulateCommand,
			},
			{
				Name:  "session",
				Usage: "Session keys",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Authorize a session key and store it",
						Flags: append(signerFlags(),
							&cli.StringFlag{Name: "sender", Required: true},
							&cli.StringFlag{Name: "username", Required: true},
							&cli.DurationFlag{Name: "ttl", Usage: "Session lifetime", Value: defaultSessionTTL},
						),
						Action: sessionCreateCommand,
					},
				},
			},
			{
				Name:  "kms",
				Usage: "AWS KMS helpers",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "region", Usage: "AWS region override"},
					&cli.StringFlag{Name: "profile", Usage: "AWS shared config profile"},
				},
				Subcommands: []*cli.Command{
					{
						Name:   "whoami",
						Usage:  "Show the AWS caller identity",
						Action: kmsWhoamiCommand,
					},
					{
						Name:   "pubkey",
						Usage:  "Show the public key and key hash of a KMS key",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "key-id", Required: true}},
						Action: kmsPubkeyCommand,
					},
				},
			},
		},
	}
}

func passwordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "password",
		Usage:   "Keyring password",
		EnvVars: []string{EnvDangoKeyringPassword},
	}
}

// signerFlags select a keyring key or a KMS key.
func signerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "key", Usage: "Keyring key name"},
		passwordFlag(),
		&cli.StringFlag{Name: "kms-key-id", Usage: "AWS KMS key id, instead of a keyring key"},
		&cli.StringFlag{Name: "region", Usage: "AWS region override for --kms-key-id"},
	}
}

func txFlags() []cli.Flag {
	return append(signerFlags(),
		&cli.StringFlag{Name: "sender", Required: true},
		&cli.StringFlag{Name: "username", Required: true},
		&cli.Uint64Flag{Name: "gas-limit", Usage: "Gas limit; simulated when unset"},
		&cli.UintFlag{Name: "sequence", Usage: "Sequence; queried when unset"},
	)
}
