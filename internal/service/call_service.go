package service

import (
	"fmt"
	"log"
	"time"

	"familytalk/internal/access"
	"familytalk/internal/models"
	"familytalk/internal/repository"
	"familytalk/internal/signal"
)

// CallService owns call signaling persistence: creating the shared call
// record, applying endpoint patches under the optimistic version guard,
// and the server-side sweeps for unanswered calls and old candidate
// lists.
type CallService struct {
	callRepo           *repository.CallRepository
	adultRepo          *repository.AdultRepository
	childRepo          *repository.ChildRepository
	notifier           Notifier
	ringTimeout        time.Duration
	candidateRetention time.Duration
}

// NewCallService creates a new call service
func NewCallService(callRepo *repository.CallRepository, adultRepo *repository.AdultRepository, childRepo *repository.ChildRepository, notifier Notifier, ringTimeout, candidateRetention time.Duration) *CallService {
	return &CallService{
		callRepo:           callRepo,
		adultRepo:          adultRepo,
		childRepo:          childRepo,
		notifier:           notifier,
		ringTimeout:        ringTimeout,
		candidateRetention: candidateRetention,
	}
}

// Start creates a ringing call from the principal to the named
// counterpart. An adult names a child; a child names an adult. The
// counterpart must be in the principal's family and, for adults, active.
func (s *CallService) Start(p access.Principal, counterpartID int64, offer string) (*models.Call, error) {
	if offer == "" {
		return nil, signal.ErrEmptyPatch
	}

	var adultID, childID int64
	if p.IsAdult() {
		adultID, childID = p.ID, counterpartID
	} else {
		adultID, childID = counterpartID, p.ID
	}

	adult, err := s.adultRepo.GetAdultByID(adultID)
	if err != nil {
		return nil, fmt.Errorf("failed to get adult: %w", err)
	}
	if adult == nil || adult.FamilyID != p.FamilyID || adult.Status != models.StatusActive {
		return nil, ErrDenied
	}

	child, err := s.childRepo.GetChildByID(childID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	if child == nil || child.FamilyID != p.FamilyID {
		return nil, ErrDenied
	}

	call, err := s.callRepo.CreateCall(p.FamilyID, adultID, childID, p.CallSide(), offer)
	if err != nil {
		return nil, err
	}

	s.publish(call, "ringing")
	return call, nil
}

// Get returns a call the principal is an endpoint of
func (s *CallService) Get(p access.Principal, callID int64) (*models.Call, error) {
	call, err := s.callRepo.GetCallByID(callID)
	if err != nil {
		return nil, err
	}
	if !access.CanAccessCall(p, call) {
		return nil, ErrDenied
	}
	return call, nil
}

// Incoming returns ringing calls waiting for the principal to answer
func (s *CallService) Incoming(p access.Principal) ([]models.Call, error) {
	calls, err := s.callRepo.ListRingingFor(p.CallSide(), p.ID)
	if err != nil {
		return nil, err
	}

	// A ringing call initiated by the principal itself is outgoing, not
	// incoming.
	incoming := calls[:0]
	for _, call := range calls {
		if call.CallerType != p.CallSide() {
			incoming = append(incoming, call)
		}
	}
	return incoming, nil
}

// Update applies one endpoint's patch at the version it last observed.
// A stale expectedVersion loses to the concurrent writer and returns
// ErrVersionConflict; the caller re-reads and resubmits. Each successful
// update advances the version by exactly one.
func (s *CallService) Update(p access.Principal, callID, expectedVersion int64, patch signal.Patch) (*models.Call, error) {
	call, err := s.callRepo.GetCallByID(callID)
	if err != nil {
		return nil, err
	}
	if !access.CanAccessCall(p, call) {
		return nil, ErrDenied
	}
	if call.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	if err := signal.Apply(call, p.CallSide(), patch, time.Now()); err != nil {
		return nil, err
	}

	ok, err := s.callRepo.UpdateGuarded(call, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVersionConflict
	}

	s.publish(call, string(call.Status))
	return call, nil
}

// SweepStaleRinging ends calls left ringing past the ring timeout as
// missed, attributed to the system. A guard loss means an endpoint got
// to the call first; the sweep skips it.
func (s *CallService) SweepStaleRinging() (int, error) {
	cutoff := time.Now().Add(-s.ringTimeout)
	calls, err := s.callRepo.ListStaleRinging(cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range calls {
		call := &calls[i]
		version := call.Version
		if err := signal.SweepEnd(call, time.Now()); err != nil {
			continue
		}
		ok, err := s.callRepo.UpdateGuarded(call, version)
		if err != nil {
			log.Printf("ring sweep: failed to end call %d: %v", call.ID, err)
			continue
		}
		if ok {
			swept++
			s.publish(call, "ended")
		}
	}
	return swept, nil
}

// CleanupEndedCandidates empties candidate lists on calls that ended
// longer ago than the retention period
func (s *CallService) CleanupEndedCandidates() (int64, error) {
	cutoff := time.Now().Add(-s.candidateRetention)
	return s.callRepo.ClearEndedCandidates(cutoff)
}

func (s *CallService) publish(call *models.Call, event string) {
	if s.notifier != nil {
		s.notifier.Publish(fmt.Sprintf("call:%d", call.ID), event, call)
	}
}
