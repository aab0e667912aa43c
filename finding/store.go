package finding

import (
	"fmt"
	"sync"
	"time"
)

// TypeRegistry is the store's view of the vulnerability type registry: it
// resolves a type id to the control tests that type requires. The concrete
// registry lives in the vulntype package.
type TypeRegistry interface {
	// RequiredControlTests returns the required control-test names for a
	// type id, and whether the type exists.
	RequiredControlTests(typeID string) ([]string, bool)
}

// VerifiedCallback is invoked after a report moves to the verified queue.
// It runs outside the store's mutex.
type VerifiedCallback func(report Report)

// Store holds every report of a scan in exactly one of four queues.
// All mutations serialize under one mutex; the mutex is never held across
// a callback.
type Store struct {
	mu         sync.Mutex
	types      TypeRegistry
	byID       map[string]*Report
	pending    []*Report
	verified   []*Report
	rejected   []*Report
	review     []*Report
	onVerified VerifiedCallback
}

// NewStore creates an empty store backed by the given type registry.
func NewStore(types TypeRegistry) *Store {
	return &Store{
		types: types,
		byID:  make(map[string]*Report),
	}
}

// SetVerifiedCallback installs the callback fired when a report is
// finalized. Intended for TUI and telemetry consumers.
func (s *Store) SetVerifiedCallback(cb VerifiedCallback) {
	s.mu.Lock()
	s.onVerified = cb
	s.mu.Unlock()
}

// AddPending validates a report and its evidence, assigns the next id, and
// appends it to the pending queue. The id counter covers pending, verified
// and rejected reports, so ids keep increasing as reports move on.
func (s *Store) AddPending(report Report) (string, error) {
	if err := report.Validate(); err != nil {
		return "", err
	}

	required, ok := s.types.RequiredControlTests(report.VulnerabilityType)
	if !ok {
		return "", fmt.Errorf("unknown vulnerability_type %q", report.VulnerabilityType)
	}
	if err := report.Evidence.Validate(required); err != nil {
		return "", fmt.Errorf("evidence validation failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Manual-review reports do not advance the counter, so the formula can
	// land on an id they still hold; skip forward to keep ids unique
	// across all four queues.
	n := len(s.pending) + len(s.verified) + len(s.rejected)
	id := fmt.Sprintf("vuln-%04d", n+1)
	for _, taken := s.byID[id]; taken; _, taken = s.byID[id] {
		n++
		id = fmt.Sprintf("vuln-%04d", n+1)
	}
	report.ID = id
	report.Status = StatusPendingVerification
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now

	stored := report
	s.byID[stored.ID] = &stored
	s.pending = append(s.pending, &stored)
	return stored.ID, nil
}

// takePending removes a report from the pending queue, returning an error
// if the id is unknown or the report already left pending. Callers hold
// the mutex.
func (s *Store) takePending(id string) (*Report, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown report id %q", id)
	}
	if r.Status != StatusPendingVerification {
		return nil, fmt.Errorf("report %s is %s, not pending verification", id, r.Status)
	}
	for i, p := range s.pending {
		if p.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return r, nil
		}
	}
	return nil, fmt.Errorf("report %s missing from pending queue", id)
}

// Finalize moves a pending report to the verified queue, recording the
// verifier's evidence and notes, then fires the verified callback.
func (s *Store) Finalize(id string, verificationEvidence map[string]any, notes string) error {
	s.mu.Lock()
	r, err := s.takePending(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	now := time.Now().UTC()
	r.Status = StatusVerified
	r.VerificationEvidence = verificationEvidence
	r.VerificationNotes = notes
	r.VerifiedAt = now
	r.UpdatedAt = now
	s.verified = append(s.verified, r)
	cb := s.onVerified
	snapshot := *r
	s.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
	return nil
}

// Reject moves a pending report to the rejected queue with a reason.
func (s *Store) Reject(id, reason, notes string) error {
	if reason == "" {
		return fmt.Errorf("rejection reason cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.takePending(id)
	if err != nil {
		return err
	}
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.VerificationNotes = notes
	r.UpdatedAt = time.Now().UTC()
	s.rejected = append(s.rejected, r)
	return nil
}

// AddToManualReview moves a pending report to the manual-review queue.
func (s *Store) AddToManualReview(id, reason, notes string) error {
	if reason == "" {
		return fmt.Errorf("review reason cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.takePending(id)
	if err != nil {
		return err
	}
	r.Status = StatusNeedsManualReview
	r.ReviewReason = reason
	r.VerificationNotes = notes
	r.UpdatedAt = time.Now().UTC()
	s.review = append(s.review, r)
	return nil
}

// IsReportVerified reports whether the id has been processed: it exists
// and no longer lives in the pending queue. Unknown ids return false.
func (s *Store) IsReportVerified(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return false
	}
	return r.Status.IsTerminal()
}

// IncrementVerificationAttempt bumps the attempt counter on a pending
// report.
func (s *Store) IncrementVerificationAttempt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("unknown report id %q", id)
	}
	if r.Status != StatusPendingVerification {
		return fmt.Errorf("report %s is %s, not pending verification", id, r.Status)
	}
	r.VerificationAttempts++
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns a copy of the report with the given id.
func (s *Store) Get(id string) (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return Report{}, false
	}
	return *r, true
}

func snapshotQueue(q []*Report) []Report {
	out := make([]Report, len(q))
	for i, r := range q {
		out[i] = *r
	}
	return out
}

// Pending returns a copy of the pending queue in submission order.
func (s *Store) Pending() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotQueue(s.pending)
}

// Verified returns a copy of the verified queue.
func (s *Store) Verified() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotQueue(s.verified)
}

// Rejected returns a copy of the rejected queue.
func (s *Store) Rejected() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotQueue(s.rejected)
}

// ManualReview returns a copy of the manual-review queue.
func (s *Store) ManualReview() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotQueue(s.review)
}

// Counts returns the size of each queue keyed by status.
func (s *Store) Counts() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[Status]int{
		StatusPendingVerification: len(s.pending),
		StatusVerified:            len(s.verified),
		StatusRejected:            len(s.rejected),
		StatusNeedsManualReview:   len(s.review),
	}
}
