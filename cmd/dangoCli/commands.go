package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	internalAws "github.com/left-curve/dango-sdk-go/internal/aws"
	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/client"
	"github.com/left-curve/dango-sdk-go/pkg/config"
	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/keyring"
	"github.com/left-curve/dango-sdk-go/pkg/logger"
	"github.com/left-curve/dango-sdk-go/pkg/salt"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/signer/awsKmsSigner"
	"github.com/left-curve/dango-sdk-go/pkg/signer/rawKeySigner"
	"github.com/left-curve/dango-sdk-go/pkg/signer/sessionSigner"
	"github.com/left-curve/dango-sdk-go/pkg/transport"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const defaultSessionTTL = 24 * time.Hour

// loadConfig layers the config file, DANGO_* env vars and flags, in that
// order.
func loadConfig(c *cli.Context) (*config.SDKConfig, error) {
	cfg := config.DefaultSDKConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadSDKConfigFile(path); err != nil {
			return nil, err
		}
	}
	cfg, err := config.ApplyEnv(cfg, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if c.IsSet("transport") {
		cfg.TransportKind = transport.Kind(c.String("transport"))
	}
	if c.IsSet("rpc-url") {
		cfg.RpcUrl = c.String("rpc-url")
	}
	if c.IsSet("indexer-url") {
		cfg.IndexerUrl = c.String("indexer-url")
	}
	if c.IsSet("chain-id") {
		cfg.ChainID = c.String("chain-id")
	}
	if c.IsSet("keyring-dir") {
		cfg.KeyringDir = c.String("keyring-dir")
	}
	if c.IsSet("persistence") {
		cfg.Persistence.Type = config.PersistenceType(c.String("persistence"))
	}
	if c.IsSet("data-path") {
		cfg.Persistence.DataPath = c.String("data-path")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.SDKConfig) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// env bundles what most commands need.
type env struct {
	cfg       *config.SDKConfig
	logger    *zap.Logger
	transport transport.ITransport
}

func setup(c *cli.Context, withTransport bool) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: l}
	if withTransport {
		if e.transport, err = cfg.NewTransport(l); err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
	}
	return e, nil
}

func (e *env) close() {
	if e.transport != nil {
		_ = e.transport.Close()
	}
	_ = e.logger.Sync()
}

func (e *env) keyring() (*keyring.Keyring, error) {
	return keyring.Open(keyring.Config{Dir: e.cfg.KeyringDir}, e.logger)
}

// loadSigner opens the keyring key named by --key, or the KMS key named by
// --kms-key-id.
func (e *env) loadSigner(c *cli.Context) (signer.ISigner, error) {
	if keyId := c.String("kms-key-id"); keyId != "" {
		awsCfg, err := internalAws.LoadAWSConfig(c.Context, internalAws.LoadOptions{Region: c.String("region")})
		if err != nil {
			return nil, err
		}
		return awsKmsSigner.NewAWSKMSSignerFromConfig(c.Context, awsCfg, keyId, e.logger)
	}
	name := c.String("key")
	if name == "" {
		return nil, fmt.Errorf("one of --key or --kms-key-id is required")
	}
	kr, err := e.keyring()
	if err != nil {
		return nil, err
	}
	return kr.Load(name, c.String("password"))
}

func (e *env) newClient(c *cli.Context) (*client.Client, error) {
	s, err := e.loadSigner(c)
	if err != nil {
		return nil, err
	}
	sender, err := address.ParseAddress(c.String("sender"))
	if err != nil {
		return nil, err
	}
	p, err := e.cfg.NewPipeline(e.transport, s, e.logger)
	if err != nil {
		return nil, err
	}
	return client.NewClient(p, client.Account{Address: sender, Username: c.String("username")}, e.logger)
}

func txOptions(c *cli.Context) []client.TxOption {
	var opts []client.TxOption
	if c.IsSet("gas-limit") {
		opts = append(opts, client.WithGasLimit(c.Uint64("gas-limit")))
	}
	if c.IsSet("sequence") {
		opts = append(opts, client.WithSequence(uint32(c.Uint("sequence"))))
	}
	return opts
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// parseCoins reads "denom=amount[,denom=amount]".
func parseCoins(s string) (types.Coins, error) {
	amounts := map[string]string{}
	if strings.TrimSpace(s) == "" {
		return types.NewCoins(amounts)
	}
	for _, part := range strings.Split(s, ",") {
		denom, amount, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("invalid coin %q, expected denom=amount", part)
		}
		if _, dup := amounts[denom]; dup {
			return nil, fmt.Errorf("duplicate denom %s", denom)
		}
		amounts[denom] = amount
	}
	return types.NewCoins(amounts)
}

func statusCommand(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := transport.WithTimeout(c.Context, e.cfg.RequestTimeout)
	defer cancel()
	status, err := e.transport.QueryStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to query status: %w", err)
	}
	return printJSON(status)
}

func addressComputeCommand(c *cli.Context) error {
	deployer, err := address.ParseAddress(c.String("deployer"))
	if err != nil {
		return err
	}
	codeHash, err := hashing.ParseHash256(c.String("code-hash"))
	if err != nil {
		return err
	}
	saltBytes, err := encoding.DecodeHex(c.String("salt"))
	if err != nil {
		return err
	}
	fmt.Println(address.Compute(deployer, codeHash, saltBytes).String())
	return nil
}

func addressValidateCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one address")
	}
	if !address.IsValidAddress(c.Args().First()) {
		return fmt.Errorf("❌ invalid address: %s", c.Args().First())
	}
	fmt.Printf("✅ valid address: %s\n", c.Args().First())
	return nil
}

func saltCommand(c *cli.Context) error {
	params := salt.Params{Username: c.String("username")}
	if index := c.Int("index"); index >= 0 {
		if index > 255 {
			return fmt.Errorf("index must be at most 255")
		}
		i := uint8(index)
		params.AccountIndex = &i
	}
	if raw := c.String("key-hash"); raw != "" {
		keyHash, err := hashing.ParseHash256(raw)
		if err != nil {
			return err
		}
		keyType, err := types.ParseKeyType(c.String("key-type"))
		if err != nil {
			return err
		}
		params.KeyHash = &keyHash
		params.KeyType = keyType
		params.PublicKey = c.String("public-key")
	}
	out, err := salt.Encode(params)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"hex":    encoding.EncodeHex(out),
		"base64": encoding.EncodeBase64(out),
	})
}

func keysAddCommand(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.close()

	password := c.String("password")
	if password == "" {
		return fmt.Errorf("a password is required, via --password or %s", EnvDangoKeyringPassword)
	}

	var (
		s        *rawKeySigner.RawKeySigner
		mnemonic string
	)
	switch {
	case c.String("private-key") != "":
		s, err = rawKeySigner.NewSecp256k1SignerFromHex(c.String("private-key"), e.logger)
	case c.Bool("ed25519"):
		s, err = rawKeySigner.GenerateEd25519(e.logger)
	default:
		mnemonic = c.String("mnemonic")
		if mnemonic == "" {
			if mnemonic, err = rawKeySigner.GenerateMnemonic(); err != nil {
				return err
			}
		}
		s, err = rawKeySigner.NewFromMnemonic(mnemonic, c.String("path"), e.logger)
	}
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}

	kr, err := e.keyring()
	if err != nil {
		return err
	}
	record, err := kr.Add(c.String("name"), password, s)
	if err != nil {
		return err
	}
	fmt.Printf("🔑 Added key %s (key hash %s)\n", record.Name, s.GetKeyHash())
	if mnemonic != "" && c.String("mnemonic") == "" {
		fmt.Printf("Write down this mnemonic, it is the only way to recover the key:\n  %s\n", mnemonic)
	}
	return nil
}

func keysShowCommand(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.close()
	kr, err := e.keyring()
	if err != nil {
		return err
	}
	record, err := kr.Show(c.String("name"))
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"name":       record.Name,
		"key_type":   record.KeyType,
		"public_key": encoding.EncodeBase64(record.PubKey),
		"key_hash":   hashing.Sha256Hash(record.PubKey).String(),
	})
}

func keysListCommand(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.close()
	kr, err := e.keyring()
	if err != nil {
		return err
	}
	records, err := kr.List()
	if err != nil {
		return err
	}
	for _, record := range records {
		fmt.Printf("%s\t%s\t%s\n", record.Name, record.KeyType, hashing.Sha256Hash(record.PubKey))
	}
	return nil
}

func keysDeleteCommand(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.close()
	kr, err := e.keyring()
	if err != nil {
		return err
	}
	if err := kr.Delete(c.String("name")); err != nil {
		return err
	}
	fmt.Printf("🗑️  Deleted key %s\n", c.String("name"))
	return nil
}

func transferCommand(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.close()

	to, err := address.ParseAddress(c.String("to"))
	if err != nil {
		return err
	}
	coins, err := parseCoins(c.String("coins"))
	if err != nil {
		return err
	}
	cl, err := e.newClient(c)
	if err != nil {
		return err
	}
	res, err := cl.Transfer(c.Context, to, coins, txOptions(c)...)
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}
	fmt.Printf("✅ Transfer confirmed: %s\n", res.Hash)
	return nil
}

func executeCommand(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.close()

	contract, err := address.ParseAddress(c.String("contract"))
	if err != nil {
		return err
	}
	msg := json.RawMessage(c.String("msg"))
	if !json.Valid(msg) {
		return fmt.Errorf("--msg is not valid JSON")
	}
	funds, err := parseCoins(c.String("funds"))
	if err != nil {
		return err
	}
	cl, err := e.newClient(c)
	if err != nil {
		return err
	}
	res, err := cl.Execute(c.Context, contract, msg, funds, txOptions(c)...)
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}
	fmt.Printf("✅ Execute confirmed: %s\n", res.Hash)
	return nil
}

func simulateCommand(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.close()

	sender, err := address.ParseAddress(c.String("sender"))
	if err != nil {
		return err
	}
	var msgs types.Messages
	if err := json.Unmarshal([]byte(c.String("msgs")), &msgs); err != nil {
		return fmt.Errorf("failed to parse --msgs: %w", err)
	}
	p, err := e.cfg.NewPipeline(e.transport, nil, e.logger)
	if err != nil {
		return err
	}
	cl, err := client.NewClient(p, client.Account{Address: sender, Username: c.String("username")}, e.logger)
	if err != nil {
		return err
	}
	res, err := cl.Simulate(c.Context, msgs)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"gas_used":  res.Outcome.GasUsed,
		"gas_limit": res.GasLimit,
		"error":     res.Outcome.Error,
		"sequence":  res.Context.Sequence,
	})
}

func sessionCreateCommand(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.close()

	parent, err := e.loadSigner(c)
	if err != nil {
		return err
	}
	sender, err := address.ParseAddress(c.String("sender"))
	if err != nil {
		return err
	}
	store, err := e.cfg.NewSessionStore(e.logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	session, err := sessionSigner.CreateSession(c.Context, parent, &sessionSigner.CreateSessionParams{
		Username: c.String("username"),
		Sender:   sender,
		ExpireAt: time.Now().Add(c.Duration("ttl")),
		Store:    store,
	}, e.logger)
	if err != nil {
		return err
	}
	record := session.Record()
	fmt.Printf("✅ Session %s valid until %s\n", record.ID, record.Info.ExpireAt.String())
	return nil
}

func kmsWhoamiCommand(c *cli.Context) error {
	awsCfg, err := internalAws.LoadAWSConfig(c.Context, internalAws.LoadOptions{
		Region:  c.String("region"),
		Profile: c.String("profile"),
	})
	if err != nil {
		return err
	}
	identity, err := internalAws.GetCallerIdentity(c.Context, awsCfg)
	if err != nil {
		return err
	}
	return printJSON(identity)
}

func kmsPubkeyCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer l.Sync()

	ctx, cancel := context.WithTimeout(c.Context, cfg.RequestTimeout)
	defer cancel()
	awsCfg, err := internalAws.LoadAWSConfig(ctx, internalAws.LoadOptions{
		Region:  c.String("region"),
		Profile: c.String("profile"),
	})
	if err != nil {
		return err
	}
	s, err := awsKmsSigner.NewAWSKMSSignerFromConfig(ctx, awsCfg, c.String("key-id"), l)
	if err != nil {
		return err
	}
	pub := s.PublicKey()
	return printJSON(map[string]string{
		"key_id":     s.KeyId(),
		"key_type":   pub.Type.String(),
		"public_key": encoding.EncodeBase64(pub.Bytes),
		"key_hash":   s.GetKeyHash().String(),
	})
}
