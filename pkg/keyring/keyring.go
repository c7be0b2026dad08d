// Package keyring stores signing keys on disk, one JSON file per key,
// encrypted under a password derived key.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/left-curve/dango-sdk-go/pkg/signer/rawKeySigner"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultRounds is the PBKDF2-HMAC-SHA256 iteration count.
	DefaultRounds = 600_000

	SaltLength = 16
	keyLength  = 32
	fileSuffix = ".json"
)

var (
	ErrKeyExists   = errors.New("key already exists")
	ErrKeyNotFound = errors.New("key not found")
	ErrDecrypt     = errors.New("failed to decrypt key, wrong password?")
)

// Record is the on-disk form of one key.
type Record struct {
	Name       string `json:"name"`
	KeyType    string `json:"key_type"`
	PubKey     []byte `json:"pubkey"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

type Config struct {
	// Dir is created on open when missing.
	Dir string
	// Rounds defaults to DefaultRounds when zero.
	Rounds int
}

// Keyring manages encrypted key files under a single directory.
type Keyring struct {
	mu sync.RWMutex

	logger *zap.Logger
	dir    string
	rounds int
}

func Open(cfg Config, logger *zap.Logger) (*Keyring, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Dir == "" {
		return nil, txErrors.NewValidationError("dir", "keyring directory is required")
	}
	rounds := cfg.Rounds
	if rounds == 0 {
		rounds = DefaultRounds
	}
	if rounds < 0 {
		return nil, txErrors.NewValidationError("rounds", "must be positive")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create keyring directory %s", cfg.Dir)
	}
	return &Keyring{
		logger: logger,
		dir:    cfg.Dir,
		rounds: rounds,
	}, nil
}

func (k *Keyring) filename(name string) string {
	return filepath.Join(k.dir, name+fileSuffix)
}

func validateName(name string) error {
	if name == "" {
		return txErrors.NewValidationError("name", "is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return txErrors.NewValidationError("name", "must not contain path separators")
	}
	return nil
}

// Add encrypts the signer's private key and writes it under name. An existing
// key with the same name is never overwritten.
func (k *Keyring) Add(name, password string, s *rawKeySigner.RawKeySigner) (*Record, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, txErrors.NewValidationError("signer", "is required")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	path := k.filename(name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, name)
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrapf(err, "failed to generate salt")
	}
	aead, err := k.cipherFor(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrapf(err, "failed to generate nonce")
	}

	pub := s.PublicKey()
	record := &Record{
		Name:       name,
		KeyType:    pub.Type.String(),
		PubKey:     pub.Bytes,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, s.PrivateKeyBytes(), nil),
	}
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key record: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyExists, name)
		}
		return nil, errors.Wrapf(err, "failed to create key file %s", path)
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		return nil, errors.Wrapf(err, "failed to write key file %s", path)
	}

	k.logger.Info("Added key to keyring",
		zap.String("name", name),
		zap.String("keyHash", s.GetKeyHash().String()),
	)
	return record, nil
}

// Show returns the stored record without decrypting it.
func (k *Keyring) Show(name string) (*Record, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.readRecord(k.filename(name))
}

// Load decrypts the named key and returns a signer around it.
func (k *Keyring) Load(name, password string) (*rawKeySigner.RawKeySigner, error) {
	record, err := k.Show(name)
	if err != nil {
		return nil, err
	}
	aead, err := k.cipherFor(password, record.Salt)
	if err != nil {
		return nil, err
	}
	if len(record.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("key %s: invalid nonce length %d", name, len(record.Nonce))
	}
	secret, err := aead.Open(nil, record.Nonce, record.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", name, ErrDecrypt)
	}

	keyType, err := types.ParseKeyType(record.KeyType)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", name, err)
	}
	var s *rawKeySigner.RawKeySigner
	switch keyType {
	case types.KeyTypeSecp256k1:
		key, err := crypto.ToECDSA(secret)
		if err != nil {
			return nil, errors.Wrapf(err, "key %s: invalid secp256k1 secret", name)
		}
		s, err = rawKeySigner.NewSecp256k1Signer(key, k.logger)
		if err != nil {
			return nil, err
		}
	case types.KeyTypeEd25519:
		s, err = rawKeySigner.NewEd25519Signer(cmted25519.PrivKey(secret), k.logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("key %s: unsupported key type %s", name, keyType)
	}

	if string(s.PublicKey().Bytes) != string(record.PubKey) {
		return nil, fmt.Errorf("key %s: decrypted key does not match stored public key", name)
	}
	return s, nil
}

// List returns all records sorted by name.
func (k *Keyring) List() ([]*Record, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read keyring directory %s", k.dir)
	}
	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		record, err := k.readRecord(filepath.Join(k.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

func (k *Keyring) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.Remove(k.filename(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
		}
		return errors.Wrapf(err, "failed to delete key %s", name)
	}
	k.logger.Info("Deleted key from keyring", zap.String("name", name))
	return nil
}

func (k *Keyring) readRecord(path string) (*Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, strings.TrimSuffix(filepath.Base(path), fileSuffix))
		}
		return nil, errors.Wrapf(err, "failed to read key file %s", path)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}
	return &record, nil
}

func (k *Keyring) cipherFor(password string, salt []byte) (cipher.AEAD, error) {
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("invalid salt length %d", len(salt))
	}
	derived := pbkdf2.Key([]byte(password), salt, k.rounds, keyLength, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
