package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/identity"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	gethcommon "github.com/ethereum/go-ethereum/common"
)

// RoleService resolves capability grants from the ledger.
//
// Grants only decide which actions the client attempts. The contracts
// enforce the same checks, so a stale grant costs a reverted transaction,
// never an unauthorized effect.
type RoleService interface {
	// Resolve reads the roles of addr from the ledger. It never consults a cache.
	Resolve(ctx context.Context, addr gethcommon.Address) (models.RoleSet, error)
	// Current resolves the connected identity.
	Current(ctx context.Context) (models.RoleSet, error)
	// Require resolves the connected identity and returns
	// common.ErrAuthorization unless it holds role.
	Require(ctx context.Context, role ledger.Role) (models.RoleSet, error)
	// Last returns the most recent grant of the connected identity, if any.
	Last() (models.RoleSet, bool)
}

type roleService struct {
	Deps

	mu      sync.Mutex
	last    models.RoleSet
	hasLast bool
}

func NewRoleService(d Deps) RoleService {
	s := &roleService{Deps: d.withDefaults()}
	s.Session.OnChange(func(_, _ identity.Identity) { s.drop() })
	s.Tx.OnSettled(s.onSettled)
	return s
}

func (s *roleService) Resolve(ctx context.Context, addr gethcommon.Address) (models.RoleSet, error) {
	if addr == (gethcommon.Address{}) {
		return models.RoleSet{}, fmt.Errorf("%w: zero address", common.ErrValidation)
	}
	gen := s.Session.Current().Generation

	admin, err := s.Ledger.HasRole(ctx, ledger.RoleAdmin, addr)
	if err != nil {
		return models.RoleSet{}, fmt.Errorf("failed to read admin role: %w", err)
	}
	vendor, err := s.Ledger.IsVendor(ctx, addr)
	if err != nil {
		return models.RoleSet{}, fmt.Errorf("failed to read vendor role: %w", err)
	}

	rs := models.RoleSet{
		Address:    addr,
		Generation: gen,
		Admin:      admin,
		Vendor:     vendor,
		ResolvedAt: s.Now(),
	}

	s.mu.Lock()
	cur := s.Session.Current()
	if cur.Address == addr && cur.Generation == gen {
		// replaced, never merged
		s.last, s.hasLast = rs, true
	}
	s.mu.Unlock()

	s.Logger.Debug(ctx, "roles resolved", "address", addr.Hex(), "admin", admin, "vendor", vendor)
	return rs, nil
}

func (s *roleService) Current(ctx context.Context) (models.RoleSet, error) {
	id, err := s.connected()
	if err != nil {
		return models.RoleSet{}, err
	}
	return s.Resolve(ctx, id.Address)
}

func (s *roleService) Require(ctx context.Context, role ledger.Role) (models.RoleSet, error) {
	rs, err := s.Current(ctx)
	if err != nil {
		return rs, err
	}
	if !rs.Has(role) {
		return rs, fmt.Errorf("%w: %s does not hold %s", common.ErrAuthorization, rs.Address.Hex(), role)
	}
	return rs, nil
}

func (s *roleService) Last() (models.RoleSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.Session.Current()
	if !s.hasLast || s.last.Generation != cur.Generation || s.last.Address != cur.Address {
		return models.RoleSet{}, false
	}
	return s.last, true
}

func (s *roleService) drop() {
	s.mu.Lock()
	s.last, s.hasLast = models.RoleSet{}, false
	s.mu.Unlock()
}

// onSettled refreshes the connected identity's grant after a confirmed
// onboarding decision.
func (s *roleService) onSettled(ctx context.Context, st txlife.Status) {
	if st.State != txlife.Confirmed {
		return
	}
	if kind, _ := parseKey(st.Key); kind != kindApprove && kind != kindReject {
		return
	}
	id := s.Session.Current()
	if !id.Connected() {
		return
	}
	if _, err := s.Resolve(ctx, id.Address); err != nil {
		s.drop()
		s.Logger.Warn(ctx, "failed to refresh roles", "address", id.Address.Hex(), "error", err)
	}
}
