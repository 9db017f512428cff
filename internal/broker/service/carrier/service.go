// Package carrier couples FMCSA verification with the stored carrier
// profile so the call flow gets one answer: can this carrier haul for us.
package carrier

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"carrierdesk/internal/broker/entity"
	"carrierdesk/internal/broker/fmcsa"
	"carrierdesk/internal/broker/repository/carrierstore"
)

// Verifier is the FMCSA lookup capability. Satisfied by *fmcsa.Client.
type Verifier interface {
	Verify(ctx context.Context, mcNumber string) (fmcsa.Verification, error)
}

type Service struct {
	verifier Verifier
	carriers *carrierstore.Store
	now      func() time.Time
}

func NewService(verifier Verifier, carriers *carrierstore.Store) *Service {
	return &Service{verifier: verifier, carriers: carriers, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Verify runs the FMCSA lookup and folds the result into the carrier
// profile, creating the profile on first contact. The verification is
// returned even when it fails so the caller can route the call accordingly.
func (s *Service) Verify(ctx context.Context, mcNumber string) (fmcsa.Verification, *entity.Carrier, error) {
	mc := strings.TrimSpace(mcNumber)
	v, err := s.verifier.Verify(ctx, mc)
	if err != nil {
		return fmcsa.Verification{}, nil, err
	}

	now := s.now().UTC()
	profile, err := s.carriers.Update(ctx, mc, func(c *entity.Carrier) error {
		applyVerification(c, v, now)
		return nil
	})
	if errors.Is(err, carrierstore.ErrCarrierNotFound) {
		created := &entity.Carrier{
			MCNumber:  mc,
			CreatedAt: now,
		}
		applyVerification(created, v, now)
		if err := s.carriers.Put(ctx, created); err != nil {
			return fmcsa.Verification{}, nil, err
		}
		profile = created
	} else if err != nil {
		return fmcsa.Verification{}, nil, err
	}

	if !v.IsValid {
		log.Printf("carrier: verification failed for MC %s (%s)", mc, v.Status)
	}
	return v, profile, nil
}

func applyVerification(c *entity.Carrier, v fmcsa.Verification, now time.Time) {
	c.IsVerified = v.IsValid
	c.FMCSAStatus = v.Status
	if v.CompanyName != "" {
		c.CompanyName = v.CompanyName
	}
	if v.DOTNumber != "" {
		c.DOTNumber = v.DOTNumber
	}
	t := now
	c.LastVerifiedAt = &t
	c.UpdatedAt = now
}

func (s *Service) Get(ctx context.Context, mcNumber string) (*entity.Carrier, error) {
	return s.carriers.Get(ctx, mcNumber)
}

func (s *Service) List(ctx context.Context, limit int) ([]*entity.Carrier, error) {
	return s.carriers.List(ctx, limit)
}

// RecordContact stamps the carrier's last-contact time. Missing profiles are
// ignored; the webhook can mention carriers we have never verified.
func (s *Service) RecordContact(ctx context.Context, mcNumber string) {
	now := s.now().UTC()
	_, err := s.carriers.Update(ctx, mcNumber, func(c *entity.Carrier) error {
		t := now
		c.LastContactAt = &t
		c.UpdatedAt = now
		return nil
	})
	if err != nil && !errors.Is(err, carrierstore.ErrCarrierNotFound) {
		log.Printf("carrier: record contact for MC %s: %v", mcNumber, err)
	}
}

// RecordBooking bumps the carrier's load counters after a won negotiation.
func (s *Service) RecordBooking(ctx context.Context, mcNumber string) error {
	now := s.now().UTC()
	_, err := s.carriers.Update(ctx, mcNumber, func(c *entity.Carrier) error {
		c.TotalLoads++
		c.SuccessfulLoads++
		c.UpdatedAt = now
		return nil
	})
	return err
}
