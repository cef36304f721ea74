package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/cryptox"
	"github.com/dmitrijs2005/giftvault/internal/identity"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MintRequest describes a new gift card. Secret is sealed with Passphrase
// before it leaves the process.
type MintRequest struct {
	Owner      string
	TokenID    string
	Vendor     string
	ExpiryDate time.Time
	Secret     any
	Passphrase string
}

// DecryptionState says what Lookup did with the encrypted payload.
type DecryptionState int

const (
	NotAttempted DecryptionState = iota
	Decrypted
	DecryptionFailed
)

func (d DecryptionState) String() string {
	switch d {
	case Decrypted:
		return "decrypted"
	case DecryptionFailed:
		return "decryption failed"
	default:
		return "not attempted"
	}
}

// LookupResult always carries the public fields of the card. Plaintext is
// set only when Decryption is Decrypted.
type LookupResult struct {
	Card       models.GiftCard
	Decryption DecryptionState
	Plaintext  json.RawMessage
}

// Secret decodes Plaintext as a gift card secret.
func (r LookupResult) Secret() (models.GiftCardSecret, bool) {
	var s models.GiftCardSecret
	if r.Decryption != Decrypted || json.Unmarshal(r.Plaintext, &s) != nil {
		return models.GiftCardSecret{}, false
	}
	return s, true
}

// GiftCardService issues, transfers and reads gift cards.
type GiftCardService interface {
	// Mint validates the request, encrypts the secret and submits the mint
	// under "mint:<id>". The returned card is Optimistic until confirmed.
	Mint(ctx context.Context, req MintRequest) (txlife.Status, models.Tagged[models.GiftCard], error)
	// Send transfers a card owned by the connected identity. Every check runs
	// against a fresh snapshot and fails with common.ErrValidation before any
	// transaction is submitted.
	Send(ctx context.Context, tokenID, to string) (txlife.Status, error)
	// Lookup reads a card and, given a passphrase, tries to decrypt it. A
	// wrong passphrase is reported in the result, not as an error.
	Lookup(ctx context.Context, tokenID, passphrase string) (LookupResult, error)
	// Portfolio lists the connected identity's cards plus in-flight mints.
	Portfolio(ctx context.Context) ([]models.Tagged[models.GiftCard], error)
}

// portfolioTTL bounds how long a cached portfolio is served. Cards sent to the
// identity by other accounts show up after at most this long.
const portfolioTTL = 15 * time.Second

type pendingMint struct {
	generation uint64
	card       models.GiftCard
}

type giftCardService struct {
	Deps

	mu         sync.Mutex
	epoch      uint64
	cached     bool
	cacheGen   uint64
	cacheAt    time.Time
	cacheCards []models.GiftCard
	minting    map[string]pendingMint
}

func NewGiftCardService(d Deps) GiftCardService {
	s := &giftCardService{
		Deps:    d.withDefaults(),
		minting: make(map[string]pendingMint),
	}
	s.Session.OnChange(func(_, _ identity.Identity) { s.invalidate(true) })
	s.Tx.OnSettled(s.onSettled)
	return s
}

func (s *giftCardService) Mint(ctx context.Context, req MintRequest) (txlife.Status, models.Tagged[models.GiftCard], error) {
	var none models.Tagged[models.GiftCard]

	id, err := s.connected()
	if err != nil {
		return txlife.Status{}, none, err
	}
	card, err := s.validateMint(req)
	if err != nil {
		return txlife.Status{}, none, err
	}
	key := tokenKey(kindMint, card.TokenID)
	if cur := s.Tx.Status(key); cur.State.InFlight() {
		return cur, none, busy(key, cur)
	}

	s.warnIfMinted(ctx, card.TokenID)

	ciphertext, err := cryptox.Encrypt(req.Secret, req.Passphrase)
	if err != nil {
		return txlife.Status{}, none, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	card.EncryptedPayload = ciphertext

	st, err := s.Tx.Submit(ctx, key, id.Address, func(ctx context.Context) (ledger.Handle, error) {
		return s.Ledger.MintGiftCard(ctx, id.Address, card.Owner, card.TokenID.ToBig(), card.Vendor,
			big.NewInt(card.ExpiryDate.Unix()), ciphertext)
	})
	if err != nil {
		return st, none, err
	}

	s.mu.Lock()
	if inFlight(s.Tx, key) {
		s.minting[key] = pendingMint{generation: id.Generation, card: card}
	}
	s.mu.Unlock()

	s.Logger.Info(ctx, "gift card mint submitted", "token", card.TokenID.Dec(), "owner", card.Owner.Hex(), "tx", st.TxHash)
	return st, models.Expect(card, key), nil
}

func (s *giftCardService) validateMint(req MintRequest) (models.GiftCard, error) {
	vendor := strings.TrimSpace(req.Vendor)
	if vendor == "" {
		return models.GiftCard{}, fmt.Errorf("%w: vendor is required", common.ErrValidation)
	}
	tokenID, err := models.ParseTokenID(req.TokenID)
	if err != nil {
		return models.GiftCard{}, err
	}
	owner, err := models.ParseAddress(req.Owner)
	if err != nil {
		return models.GiftCard{}, err
	}
	now := s.Now()
	if req.ExpiryDate.Unix() <= now.Unix() {
		return models.GiftCard{}, fmt.Errorf("%w: expiry date must be in the future", common.ErrValidation)
	}
	if isEmptySecret(req.Secret) {
		return models.GiftCard{}, fmt.Errorf("%w: secret payload is required", common.ErrValidation)
	}
	if req.Passphrase == "" {
		return models.GiftCard{}, fmt.Errorf("%w: passphrase is required", common.ErrValidation)
	}
	return models.GiftCard{
		TokenID:    tokenID,
		Owner:      owner,
		Vendor:     vendor,
		ExpiryDate: time.Unix(req.ExpiryDate.Unix(), 0).UTC(),
		FetchedAt:  now.UTC(),
	}, nil
}

func isEmptySecret(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case models.GiftCardSecret:
		return strings.TrimSpace(x.Code) == ""
	case *models.GiftCardSecret:
		return x == nil || strings.TrimSpace(x.Code) == ""
	}
	return false
}

// warnIfMinted is advisory only; the contract rejects duplicate ids.
func (s *giftCardService) warnIfMinted(ctx context.Context, id *uint256.Int) {
	raw, err := s.Ledger.GetTokenMetadata(ctx, id.ToBig())
	if err != nil {
		s.Logger.Debug(ctx, "duplicate check skipped", "token", id.Dec(), "error", err)
		return
	}
	if _, err := models.NormalizeGiftCard(id.ToBig(), gethcommon.Address{}, raw, s.Now()); err == nil {
		s.Logger.Warn(ctx, "token id appears to be minted already", "token", id.Dec())
	}
}

func (s *giftCardService) Send(ctx context.Context, tokenID, to string) (txlife.Status, error) {
	id, err := s.connected()
	if err != nil {
		return txlife.Status{}, err
	}
	recipient, err := models.ParseAddress(to)
	if err != nil {
		return txlife.Status{}, err
	}
	tid, err := models.ParseTokenID(tokenID)
	if err != nil {
		return txlife.Status{}, err
	}
	key := tokenKey(kindSend, tid)
	if cur := s.Tx.Status(key); cur.State.InFlight() {
		return cur, busy(key, cur)
	}

	card, err := s.snapshot(ctx, id.Address, tid)
	if err != nil {
		return s.Tx.Status(key), err
	}
	if card.IsExpired(s.Now()) {
		return s.Tx.Status(key), fmt.Errorf("%w: gift card %s expired on %s", common.ErrValidation, tid.Dec(), card.ExpiryDate.Format(time.DateOnly))
	}

	s.Logger.Info(ctx, "sending gift card", "token", tid.Dec(), "to", recipient.Hex())
	return s.Tx.Submit(ctx, key, id.Address, func(ctx context.Context) (ledger.Handle, error) {
		return s.Ledger.SendGiftCard(ctx, id.Address, recipient, tid.ToBig())
	})
}

// snapshot reads the card fresh and checks that owner holds it.
func (s *giftCardService) snapshot(ctx context.Context, owner gethcommon.Address, id *uint256.Int) (models.GiftCard, error) {
	held, err := s.Ledger.GetUserTokens(ctx, owner)
	if err != nil {
		return models.GiftCard{}, fmt.Errorf("failed to read tokens: %w", err)
	}
	ids, err := models.DedupeTokenIDs(held)
	if err != nil {
		return models.GiftCard{}, err
	}
	if !slices.ContainsFunc(ids, id.Eq) {
		return models.GiftCard{}, fmt.Errorf("%w: %s does not own gift card %s", common.ErrValidation, owner.Hex(), id.Dec())
	}

	raw, err := s.Ledger.GetTokenMetadata(ctx, id.ToBig())
	if err != nil {
		return models.GiftCard{}, fmt.Errorf("failed to read gift card: %w", err)
	}
	card, err := models.NormalizeGiftCard(id.ToBig(), owner, raw, s.Now())
	if errors.Is(err, common.ErrorNotFound) {
		return models.GiftCard{}, fmt.Errorf("%w: gift card %s does not exist", common.ErrValidation, id.Dec())
	}
	return card, err
}

func (s *giftCardService) Lookup(ctx context.Context, tokenID, passphrase string) (LookupResult, error) {
	tid, err := models.ParseTokenID(tokenID)
	if err != nil {
		return LookupResult{}, err
	}
	raw, err := s.Ledger.GetTokenMetadata(ctx, tid.ToBig())
	if err != nil {
		return LookupResult{}, fmt.Errorf("failed to read gift card: %w", err)
	}
	card, err := models.NormalizeGiftCard(tid.ToBig(), gethcommon.Address{}, raw, s.Now())
	if err != nil {
		return LookupResult{}, err
	}

	res := LookupResult{Card: card}
	if passphrase == "" {
		return res, nil
	}
	plain, err := cryptox.Open(card.EncryptedPayload, passphrase)
	if err != nil {
		res.Decryption = DecryptionFailed
		s.Logger.Debug(ctx, "gift card decryption failed", "token", tid.Dec())
		return res, nil
	}
	res.Decryption = Decrypted
	res.Plaintext = plain
	return res, nil
}

func (s *giftCardService) Portfolio(ctx context.Context) ([]models.Tagged[models.GiftCard], error) {
	id, err := s.connected()
	if err != nil {
		return nil, err
	}

	cards, err := s.cards(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]models.Tagged[models.GiftCard], 0, len(cards))
	for _, c := range cards {
		if key := tokenKey(kindSend, c.TokenID); inFlight(s.Tx, key) {
			out = append(out, models.Expect(c, key))
			continue
		}
		out = append(out, models.Confirm(c))
	}

	s.mu.Lock()
	var optimistic []models.Tagged[models.GiftCard]
	for key, pm := range s.minting {
		if pm.generation != id.Generation || pm.card.Owner != id.Address || !inFlight(s.Tx, key) {
			continue
		}
		if slices.ContainsFunc(cards, func(c models.GiftCard) bool { return c.TokenID.Eq(pm.card.TokenID) }) {
			continue
		}
		optimistic = append(optimistic, models.Expect(pm.card, key))
	}
	s.mu.Unlock()

	slices.SortFunc(optimistic, func(a, b models.Tagged[models.GiftCard]) int {
		return a.Value.TokenID.Cmp(b.Value.TokenID)
	})
	return append(out, optimistic...), nil
}

func (s *giftCardService) cards(ctx context.Context, id identity.Identity) ([]models.GiftCard, error) {
	s.mu.Lock()
	if s.cached && s.cacheGen == id.Generation && s.Now().Sub(s.cacheAt) < portfolioTTL {
		cards := s.cacheCards
		s.mu.Unlock()
		return cards, nil
	}
	epoch := s.epoch
	s.mu.Unlock()

	held, err := s.Ledger.GetUserTokens(ctx, id.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens: %w", err)
	}
	ids, err := models.DedupeTokenIDs(held)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	cards := make([]models.GiftCard, 0, len(ids))
	for _, tid := range ids {
		raw, err := s.Ledger.GetTokenMetadata(ctx, tid.ToBig())
		if err != nil {
			return nil, fmt.Errorf("failed to read gift card %s: %w", tid.Dec(), err)
		}
		card, err := models.NormalizeGiftCard(tid.ToBig(), id.Address, raw, now)
		if errors.Is(err, common.ErrorNotFound) {
			s.Logger.Warn(ctx, "listed token has no metadata", "token", tid.Dec())
			continue
		}
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	s.mu.Lock()
	if s.epoch == epoch && s.Session.Current().Generation == id.Generation {
		s.cached, s.cacheGen, s.cacheAt, s.cacheCards = true, id.Generation, now, cards
	}
	s.mu.Unlock()
	return cards, nil
}

func (s *giftCardService) invalidate(identityChanged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.cached, s.cacheCards = false, nil
	if identityChanged {
		s.minting = make(map[string]pendingMint)
	}
}

func (s *giftCardService) onSettled(ctx context.Context, st txlife.Status) {
	kind, _ := parseKey(st.Key)
	if kind != kindMint && kind != kindSend {
		return
	}
	s.mu.Lock()
	delete(s.minting, st.Key)
	s.mu.Unlock()
	if st.State == txlife.Confirmed {
		s.invalidate(false)
		s.Logger.Debug(ctx, "portfolio invalidated", "key", st.Key)
	}
}
