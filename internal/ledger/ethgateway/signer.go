package ethgateway

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrLocked is returned when no unlocked key exists for the signing address.
var ErrLocked = errors.New("account is locked")

// Signer signs transactions on behalf of an address. It plays the role of the
// wallet: a failed signature means the write was declined before submission.
type Signer interface {
	SignTx(from common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner holds raw private keys in memory.
type KeySigner struct {
	mu   sync.RWMutex
	keys map[common.Address]*ecdsa.PrivateKey
}

func NewKeySigner(keys ...*ecdsa.PrivateKey) *KeySigner {
	s := &KeySigner{keys: make(map[common.Address]*ecdsa.PrivateKey)}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add registers key and returns its address.
func (s *KeySigner) Add(key *ecdsa.PrivateKey) common.Address {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	s.mu.Lock()
	s.keys[addr] = key
	s.mu.Unlock()
	return addr
}

func (s *KeySigner) SignTx(from common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.mu.RLock()
	key, ok := s.keys[from]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", from.Hex(), ErrLocked)
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
}

// KeystoreSigner signs with accounts from an encrypted keystore directory.
// Accounts must be unlocked with their passphrase before use.
type KeystoreSigner struct {
	ks *keystore.KeyStore
}

func NewKeystoreSigner(dir string) *KeystoreSigner {
	return &KeystoreSigner{ks: keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)}
}

// Accounts lists the addresses found in the keystore directory.
func (s *KeystoreSigner) Accounts() []common.Address {
	accs := s.ks.Accounts()
	out := make([]common.Address, len(accs))
	for i, a := range accs {
		out[i] = a.Address
	}
	return out
}

// Unlock decrypts the key for addr until the process exits.
func (s *KeystoreSigner) Unlock(addr common.Address, passphrase string) error {
	acc, err := s.ks.Find(accounts.Account{Address: addr})
	if err != nil {
		return fmt.Errorf("failed to find %s in keystore: %w", addr.Hex(), err)
	}
	if err := s.ks.Unlock(acc, passphrase); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", addr.Hex(), err)
	}
	return nil
}

func (s *KeystoreSigner) SignTx(from common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := s.ks.SignTx(accounts.Account{Address: from}, tx, chainID)
	if errors.Is(err, keystore.ErrLocked) {
		return nil, fmt.Errorf("%s: %w", from.Hex(), ErrLocked)
	}
	return signed, err
}
