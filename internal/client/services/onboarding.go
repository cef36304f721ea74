package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/giftvault/internal/client/models"
	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/dmitrijs2005/giftvault/internal/ledger"
	"github.com/dmitrijs2005/giftvault/internal/txlife"
	gethcommon "github.com/ethereum/go-ethereum/common"
)

// OnboardingService drives vendor applications:
//
//	NotApplied -> Pending -> Approved | Rejected
//
// Approved and Rejected are terminal. Status is derived from fresh ledger
// reads plus the decisions this client saw confirmed, because a read may lag
// behind a receipt.
type OnboardingService interface {
	Status(ctx context.Context, applicant gethcommon.Address) (models.Tagged[models.ApplicationStatus], error)
	// Apply submits an application for the connected identity.
	Apply(ctx context.Context) (txlife.Status, error)
	// Approve and Reject require the Admin role and a Pending application.
	// Pre-flight failures submit nothing.
	Approve(ctx context.Context, applicant gethcommon.Address) (txlife.Status, error)
	Reject(ctx context.Context, applicant gethcommon.Address) (txlife.Status, error)
	PendingApplications(ctx context.Context) ([]models.Tagged[models.VendorApplication], error)
}

type onboardingService struct {
	Deps
	roles RoleService

	mu      sync.Mutex
	decided map[gethcommon.Address]models.ApplicationStatus
}

func NewOnboardingService(d Deps, roles RoleService) OnboardingService {
	s := &onboardingService{
		Deps:    d.withDefaults(),
		roles:   roles,
		decided: make(map[gethcommon.Address]models.ApplicationStatus),
	}
	s.Tx.OnSettled(s.onSettled)
	return s
}

func (s *onboardingService) Status(ctx context.Context, applicant gethcommon.Address) (models.Tagged[models.ApplicationStatus], error) {
	if key := addressKey(kindApply, applicant); inFlight(s.Tx, key) {
		return models.Expect(models.Pending, key), nil
	}
	if key := addressKey(kindApprove, applicant); inFlight(s.Tx, key) {
		return models.Expect(models.Approved, key), nil
	}
	if key := addressKey(kindReject, applicant); inFlight(s.Tx, key) {
		return models.Expect(models.Rejected, key), nil
	}
	st, err := s.ledgerStatus(ctx, applicant)
	if err != nil {
		return models.Tagged[models.ApplicationStatus]{}, err
	}
	return models.Confirm(st), nil
}

func (s *onboardingService) ledgerStatus(ctx context.Context, applicant gethcommon.Address) (models.ApplicationStatus, error) {
	vendor, err := s.Ledger.IsVendor(ctx, applicant)
	if err != nil {
		return models.NotApplied, fmt.Errorf("failed to read vendor status: %w", err)
	}
	if vendor {
		return models.Approved, nil
	}

	local := s.decision(applicant)
	if local.Terminal() {
		return local, nil
	}

	applied, err := s.Ledger.HasAppliedForVendor(ctx, applicant)
	if err != nil {
		return models.NotApplied, fmt.Errorf("failed to read application: %w", err)
	}
	if applied {
		apps, err := s.Ledger.GetVendorApplications(ctx)
		if err != nil {
			return models.NotApplied, fmt.Errorf("failed to read applications: %w", err)
		}
		if slices.Contains(apps, applicant) {
			return models.Pending, nil
		}
		// applied, no longer listed and not a vendor
		return models.Rejected, nil
	}
	if local == models.Pending {
		return models.Pending, nil
	}
	return models.NotApplied, nil
}

func (s *onboardingService) decision(applicant gethcommon.Address) models.ApplicationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decided[applicant]
}

func (s *onboardingService) Apply(ctx context.Context) (txlife.Status, error) {
	id, err := s.connected()
	if err != nil {
		return txlife.Status{}, err
	}
	key := addressKey(kindApply, id.Address)
	if cur := s.Tx.Status(key); cur.State.InFlight() {
		return cur, busy(key, cur)
	}

	st, err := s.ledgerStatus(ctx, id.Address)
	if err != nil {
		return s.Tx.Status(key), err
	}
	if st != models.NotApplied {
		return s.Tx.Status(key), fmt.Errorf("%w: application of %s is %s", common.ErrInvalidState, id.Address.Hex(), st)
	}

	s.Logger.Info(ctx, "applying for vendor", "address", id.Address.Hex())
	return s.Tx.Submit(ctx, key, id.Address, func(ctx context.Context) (ledger.Handle, error) {
		return s.Ledger.ApplyForVendor(ctx, id.Address)
	})
}

func (s *onboardingService) Approve(ctx context.Context, applicant gethcommon.Address) (txlife.Status, error) {
	return s.decide(ctx, applicant, kindApprove, kindReject)
}

func (s *onboardingService) Reject(ctx context.Context, applicant gethcommon.Address) (txlife.Status, error) {
	return s.decide(ctx, applicant, kindReject, kindApprove)
}

func (s *onboardingService) decide(ctx context.Context, applicant gethcommon.Address, kind, opposite string) (txlife.Status, error) {
	key := addressKey(kind, applicant)
	id, err := s.connected()
	if err != nil {
		return s.Tx.Status(key), err
	}
	if applicant == (gethcommon.Address{}) {
		return s.Tx.Status(key), fmt.Errorf("%w: zero address", common.ErrValidation)
	}
	if _, err := s.roles.Require(ctx, ledger.RoleAdmin); err != nil {
		return s.Tx.Status(key), err
	}
	if cur := s.Tx.Status(key); cur.State.InFlight() {
		return cur, busy(key, cur)
	}
	if okey := addressKey(opposite, applicant); inFlight(s.Tx, okey) {
		return s.Tx.Status(key), fmt.Errorf("%w: %s is in flight", common.ErrBusy, okey)
	}

	st, err := s.ledgerStatus(ctx, applicant)
	if err != nil {
		return s.Tx.Status(key), err
	}
	if st != models.Pending {
		return s.Tx.Status(key), fmt.Errorf("%w: application of %s is %s", common.ErrInvalidState, applicant.Hex(), st)
	}

	s.Logger.Info(ctx, "submitting vendor decision", "decision", kind, "applicant", applicant.Hex())
	return s.Tx.Submit(ctx, key, id.Address, func(ctx context.Context) (ledger.Handle, error) {
		if kind == kindApprove {
			return s.Ledger.ApproveVendor(ctx, id.Address, applicant)
		}
		return s.Ledger.RejectVendor(ctx, id.Address, applicant)
	})
}

func (s *onboardingService) PendingApplications(ctx context.Context) ([]models.Tagged[models.VendorApplication], error) {
	raw, err := s.Ledger.GetVendorApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applications: %w", err)
	}

	var out []models.Tagged[models.VendorApplication]
	for _, a := range models.DedupeAddresses(raw) {
		if s.decision(a).Terminal() {
			continue
		}
		app := models.VendorApplication{Applicant: a, Status: models.Pending}
		switch {
		case inFlight(s.Tx, addressKey(kindApprove, a)):
			app.Status = models.Approved
			out = append(out, models.Expect(app, addressKey(kindApprove, a)))
		case inFlight(s.Tx, addressKey(kindReject, a)):
			app.Status = models.Rejected
			out = append(out, models.Expect(app, addressKey(kindReject, a)))
		default:
			out = append(out, models.Confirm(app))
		}
	}
	return out, nil
}

func (s *onboardingService) onSettled(ctx context.Context, st txlife.Status) {
	if st.State != txlife.Confirmed {
		return
	}
	kind, target := parseKey(st.Key)
	var next models.ApplicationStatus
	switch kind {
	case kindApply:
		next = models.Pending
	case kindApprove:
		next = models.Approved
	case kindReject:
		next = models.Rejected
	default:
		return
	}
	if !gethcommon.IsHexAddress(target) {
		return
	}
	applicant := gethcommon.HexToAddress(target)

	s.mu.Lock()
	if !s.decided[applicant].Terminal() {
		s.decided[applicant] = next
	}
	s.mu.Unlock()
	s.Logger.Info(ctx, "vendor application updated", "applicant", applicant.Hex(), "status", next)
}
