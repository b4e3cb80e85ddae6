package request

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	"kyc-gateway/internal/kyc/request/store"
	id "kyc-gateway/pkg/domain"
	pkgerrors "kyc-gateway/pkg/errors"
)

type capturedAudit struct {
	Action   string
	EntityID string
	ActorID  string
	Details  map[string]any
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []capturedAudit
}

func (a *auditRecorder) Log(action, _, entityID string, details map[string]any, actorID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, capturedAudit{
		Action:   action,
		EntityID: entityID,
		ActorID:  actorID,
		Details:  details,
	})
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	svc    *Service
	store  *store.Memory
	audit  *auditRecorder
	now    time.Time
	userID id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.store = store.NewMemory()
	s.audit = &auditRecorder{}
	s.userID = id.NewUserID()

	svc, err := New(s.store,
		WithClock(ports.ClockFunc(func() time.Time { return s.now })),
		WithAuditSink(s.audit),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) advance(d time.Duration) { s.now = s.now.Add(d) }

func (s *ServiceSuite) TestCreateFirstRequest() {
	req, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	s.Equal(domain.StatusSubmitted, req.Status)
	s.Equal(1, req.AttemptNumber)
	s.Equal(s.now, req.SubmittedAt)
	s.False(req.ID.IsNil())
	s.Equal([]string{"KYC_SUBMITTED"}, s.audit.actions())
}

func (s *ServiceSuite) TestConcurrentRequestRejected() {
	_, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	_, err = s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().ErrorIs(err, domain.ErrConcurrentRequestExists)
}

func (s *ServiceSuite) TestDifferentTypesRunInParallel() {
	_, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	_, err = s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypeAadhaar)
	s.NoError(err)
}

func (s *ServiceSuite) failRequest(requestID id.RequestID) {
	s.Require().NoError(s.svc.UpdateStatus(context.Background(), requestID, domain.StatusProcessing, ""))
	s.Require().NoError(s.svc.UpdateStatus(context.Background(), requestID, domain.StatusFailed, "Name mismatch"))
}

func (s *ServiceSuite) TestResubmissionReopensSameRequest() {
	first, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)
	s.failRequest(first.ID)

	s.advance(time.Hour)
	second, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID, "resubmission rides the same request identity")
	s.Equal(2, second.AttemptNumber)
	s.Equal(domain.StatusSubmitted, second.Status)
	s.Empty(second.FailureReason)
	s.Nil(second.ProcessingStartedAt)
	s.Nil(second.CompletedAt)
	s.Equal(s.now, second.SubmittedAt)
	s.Contains(s.audit.actions(), "KYC_RESUBMITTED")
}

func (s *ServiceSuite) TestAttemptNumberNeverResets() {
	req, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	for attempt := 2; attempt <= 4; attempt++ {
		s.failRequest(req.ID)
		s.advance(24 * time.Hour)
		req, err = s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
		s.Require().NoError(err)
		s.Equal(attempt, req.AttemptNumber)
	}
}

func (s *ServiceSuite) limitedService(limit int) *Service {
	svc, err := New(s.store,
		WithClock(ports.ClockFunc(func() time.Time { return s.now })),
		WithDailyAttemptLimit(limit),
	)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) TestDailyLimitBlocksSubmission() {
	svc := s.limitedService(3)

	// The reopened request keeps one row, so the day's attempt sum equals
	// the current attempt number. Attempts 1-3 land; the fourth is blocked.
	req, err := svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)
	for attempt := 2; attempt <= 3; attempt++ {
		s.failRequest(req.ID)
		req, err = svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
		s.Require().NoError(err)
		s.Equal(attempt, req.AttemptNumber)
	}
	s.failRequest(req.ID)

	_, err = svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().ErrorIs(err, domain.ErrDailyLimitExceeded)
}

func (s *ServiceSuite) TestDailyLimitResetsAtMidnight() {
	svc := s.limitedService(3)

	req, err := svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)
	for i := 0; i < 2; i++ {
		s.failRequest(req.ID)
		req, err = svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
		s.Require().NoError(err)
	}
	s.failRequest(req.ID)
	_, err = svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().ErrorIs(err, domain.ErrDailyLimitExceeded)

	// Next day the sum starts from zero again.
	s.advance(24 * time.Hour)
	req, err = svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)
	s.Equal(4, req.AttemptNumber)
}

func (s *ServiceSuite) TestDailyLimitCountsBothDocumentTypes() {
	svc, err := New(s.store,
		WithClock(ports.ClockFunc(func() time.Time { return s.now })),
		WithDailyAttemptLimit(2),
	)
	s.Require().NoError(err)

	_, err = svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)
	_, err = svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypeAadhaar)
	s.Require().NoError(err)

	// Both pending attempts sum to the limit; a third submission of any type
	// is rejected before the concurrency check.
	_, err = svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().ErrorIs(err, domain.ErrDailyLimitExceeded)
}

func (s *ServiceSuite) TestUpdateStatusValidTransition() {
	req, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.UpdateStatus(context.Background(), req.ID, domain.StatusProcessing, ""))
	loaded, err := s.svc.Get(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusProcessing, loaded.Status)
	s.Contains(s.audit.actions(), "KYC_STATUS_UPDATED")
}

func (s *ServiceSuite) TestUpdateStatusInvalidTransition() {
	req, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	err = s.svc.UpdateStatus(context.Background(), req.ID, domain.StatusVerified, "")
	s.Require().Error(err)
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func (s *ServiceSuite) TestUpdateStatusUnknownStatus() {
	req, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	err = s.svc.UpdateStatus(context.Background(), req.ID, domain.Status("PENDING"), "")
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestUpdateStatusNotFound() {
	err := s.svc.UpdateStatus(context.Background(), id.NewRequestID(), domain.StatusProcessing, "")
	s.Require().ErrorIs(err, domain.ErrRequestNotFound)
}

func (s *ServiceSuite) TestTerminalStatusStampsCompletedAt() {
	req, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.UpdateStatus(context.Background(), req.ID, domain.StatusProcessing, ""))

	s.advance(time.Minute)
	s.Require().NoError(s.svc.UpdateStatus(context.Background(), req.ID, domain.StatusVerified, ""))

	loaded, err := s.svc.Get(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Require().NotNil(loaded.CompletedAt)
	s.Equal(s.now, *loaded.CompletedAt)
}

func (s *ServiceSuite) TestClaimIsSingleWinner() {
	req, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)

	claimed, err := s.svc.Claim(context.Background(), req.ID)
	s.Require().NoError(err)
	s.True(claimed)

	again, err := s.svc.Claim(context.Background(), req.ID)
	s.Require().NoError(err)
	s.False(again, "second claim must lose")

	loaded, err := s.svc.Get(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusProcessing, loaded.Status)
	s.NotNil(loaded.ProcessingStartedAt)
}

func (s *ServiceSuite) TestSearchFilters() {
	req, err := s.svc.CreateOrReuse(context.Background(), s.userID, domain.DocumentTypePAN)
	s.Require().NoError(err)
	other := id.NewUserID()
	_, err = s.svc.CreateOrReuse(context.Background(), other, domain.DocumentTypeAadhaar)
	s.Require().NoError(err)

	found, err := s.svc.Search(context.Background(), ports.RequestFilter{UserID: s.userID}, "admin-1")
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(req.ID, found[0].ID)

	byType, err := s.svc.Search(context.Background(), ports.RequestFilter{DocumentType: domain.DocumentTypeAadhaar}, "admin-1")
	s.Require().NoError(err)
	s.Len(byType, 1)

	s.Contains(s.audit.actions(), "KYC_SEARCH")
}
