// Package wallet manages per-user trading wallets as encrypted keystore files
// on disk. The executor receives only short-lived key handles; nothing else
// in the process holds key material.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

// keyHandle is the only domain.KeyHandle implementation; it wraps a decrypted
// key for the duration of one execution.
type keyHandle struct {
	pk *ecdsa.PrivateKey
}

func (h keyHandle) PrivateKey() *ecdsa.PrivateKey { return h.pk }

// Service implements domain.WalletService over a directory of wallet files,
// one per user id.
type Service struct {
	dir           string
	password      string
	createMissing bool
	logger        *slog.Logger

	// mu serializes create-on-first-use so two concurrent resolutions of the
	// same new user cannot race on the wallet file.
	mu sync.Mutex
}

// Config holds wallet service settings.
type Config struct {
	// Dir is the directory holding per-user wallet files.
	Dir string

	// Password encrypts and decrypts the keystore files.
	Password string

	// CreateMissing enables wallet generation on first use. When false, an
	// unknown user fails with domain.ErrWalletNotFound.
	CreateMissing bool
}

// NewService creates the wallet service, creating the wallet directory if
// necessary.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("wallet: directory must be configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("wallet: create directory %s: %w", cfg.Dir, err)
	}
	return &Service{
		dir:           cfg.Dir,
		password:      cfg.Password,
		createMissing: cfg.CreateMissing,
		logger:        logger.With(slog.String("component", "wallet")),
	}, nil
}

// GetOrCreate resolves the user's wallet, generating and persisting a new one
// when allowed.
func (s *Service) GetOrCreate(ctx context.Context, userID int64) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, err
	}

	path := s.walletPath(userID)
	blob, err := os.ReadFile(path)
	switch {
	case err == nil:
		return s.open(userID, blob)
	case os.IsNotExist(err):
		if !s.createMissing {
			return domain.Wallet{}, fmt.Errorf("wallet: user %d: %w", userID, domain.ErrWalletNotFound)
		}
		return s.create(userID, path)
	default:
		return domain.Wallet{}, fmt.Errorf("wallet: read %s: %w", path, err)
	}
}

func (s *Service) open(userID int64, blob []byte) (domain.Wallet, error) {
	address, keyHex, err := openKey(blob, s.password)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet: user %d: %w", userID, err)
	}

	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet: user %d: invalid stored key: %w", userID, err)
	}

	addr := common.HexToAddress(address)
	if derived := ethcrypto.PubkeyToAddress(pk.PublicKey); derived != addr {
		return domain.Wallet{}, fmt.Errorf("wallet: user %d: keystore address mismatch", userID)
	}

	return domain.Wallet{Address: addr, Key: keyHandle{pk: pk}}, nil
}

func (s *Service) create(userID int64, path string) (domain.Wallet, error) {
	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet: generate key for user %d: %w", userID, err)
	}

	addr := ethcrypto.PubkeyToAddress(pk.PublicKey)
	blob, err := sealKey(addr.Hex(), ethcrypto.FromECDSA(pk), s.password)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet: seal key for user %d: %w", userID, err)
	}

	// Write-then-rename so a crash never leaves a truncated keystore.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return domain.Wallet{}, fmt.Errorf("wallet: rename %s: %w", tmp, err)
	}

	s.logger.Info("wallet created",
		slog.Int64("user_id", userID),
		slog.String("address", addr.Hex()),
	)

	return domain.Wallet{Address: addr, Key: keyHandle{pk: pk}}, nil
}

func (s *Service) walletPath(userID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", userID))
}

var _ domain.WalletService = (*Service)(nil)
