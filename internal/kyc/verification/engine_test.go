package verification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	"kyc-gateway/internal/kyc/verification/store"
	id "kyc-gateway/pkg/domain"
)

type EngineSuite struct {
	suite.Suite
	engine  *Engine
	results *store.Memory
	now     time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.results = store.NewMemory()
	engine, err := New(s.results, WithClock(ports.ClockFunc(func() time.Time { return s.now })))
	s.Require().NoError(err)
	s.engine = engine
}

func (s *EngineSuite) profile(name, dob string) *domain.UserProfile {
	p := &domain.UserProfile{UserID: id.UserID{}, Name: name}
	if dob != "" {
		t, err := time.Parse("2006-01-02", dob)
		s.Require().NoError(err)
		p.Dob = &t
	}
	return p
}

func (s *EngineSuite) extracted(name, dob, number string) *domain.ExtractedData {
	data := &domain.ExtractedData{Name: name, DocumentNumber: number}
	if dob != "" {
		t, err := time.Parse("2006-01-02", dob)
		s.Require().NoError(err)
		data.Dob = &t
	}
	return data
}

func (s *EngineSuite) TestAllChecksPass() {
	requestID := id.NewRequestID()
	result, err := s.engine.Verify(context.Background(), requestID,
		s.profile("John Doe", "1990-05-21"), "ABCDE1234F",
		s.extracted("JOHN DOE", "1990-05-21", "abcde 1234f"))
	s.Require().NoError(err)

	s.Equal(domain.StatusVerified, result.FinalStatus)
	s.InDelta(100.0, result.NameMatchScore, 0.001)
	s.True(result.DobMatch)
	s.True(result.DocumentNumberMatch)
	s.Equal("All checks passed", result.DecisionReason)
	s.Equal(s.now, result.CreatedAt)

	stored, err := s.results.ListByRequest(context.Background(), requestID)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(result.ID, stored[0].ID)
}

func (s *EngineSuite) TestCloseNameStillMatches() {
	result, err := s.engine.Verify(context.Background(), id.NewRequestID(),
		s.profile("John Doe", "1990-05-21"), "ABCDE1234F",
		s.extracted("Jon Doe", "1990-05-21", "ABCDE1234F"))
	s.Require().NoError(err)

	s.Equal(domain.StatusVerified, result.FinalStatus)
	s.InDelta(87.5, result.NameMatchScore, 0.001)
}

func (s *EngineSuite) TestNameMismatchReason() {
	result, err := s.engine.Verify(context.Background(), id.NewRequestID(),
		s.profile("John Doe", "1990-05-21"), "ABCDE1234F",
		s.extracted("Rahul Kumar", "1990-05-21", "ABCDE1234F"))
	s.Require().NoError(err)

	s.Equal(domain.StatusFailed, result.FinalStatus)
	s.Contains(result.DecisionReason, "Name mismatch")
	s.Contains(result.DecisionReason, "Expected: John Doe")
	s.Contains(result.DecisionReason, "Found: Rahul Kumar")
	s.Contains(result.DecisionReason, "Score:")
}

func (s *EngineSuite) TestMissingExtractedNameFails() {
	result, err := s.engine.Verify(context.Background(), id.NewRequestID(),
		s.profile("John Doe", "1990-05-21"), "ABCDE1234F",
		s.extracted("", "1990-05-21", "ABCDE1234F"))
	s.Require().NoError(err)

	s.Equal(domain.StatusFailed, result.FinalStatus)
	s.InDelta(0.0, result.NameMatchScore, 0.001)
}

func (s *EngineSuite) TestDobMismatchReason() {
	result, err := s.engine.Verify(context.Background(), id.NewRequestID(),
		s.profile("John Doe", "1990-05-21"), "ABCDE1234F",
		s.extracted("John Doe", "1991-05-21", "ABCDE1234F"))
	s.Require().NoError(err)

	s.Equal(domain.StatusFailed, result.FinalStatus)
	s.False(result.DobMatch)
	s.Contains(result.DecisionReason, "DOB mismatch (Expected: 1990-05-21, Found: 1991-05-21).")
}

func (s *EngineSuite) TestMissingDobFails() {
	result, err := s.engine.Verify(context.Background(), id.NewRequestID(),
		s.profile("John Doe", "1990-05-21"), "ABCDE1234F",
		s.extracted("John Doe", "", "ABCDE1234F"))
	s.Require().NoError(err)

	s.False(result.DobMatch)
	s.Contains(result.DecisionReason, "Found: N/A")
}

func (s *EngineSuite) TestDocumentNumberMismatchNamesBothValues() {
	result, err := s.engine.Verify(context.Background(), id.NewRequestID(),
		s.profile("John Doe", "1990-05-21"), "ABCDE1234F",
		s.extracted("John Doe", "1990-05-21", "XYZAB9876K"))
	s.Require().NoError(err)

	s.Equal(domain.StatusFailed, result.FinalStatus)
	s.False(result.DocumentNumberMatch)
	s.Contains(result.DecisionReason, "Doc Number mismatch (Expected: ABCDE1234F, Found: XYZAB9876K).")
}

func (s *EngineSuite) TestEmptyDeclaredNumberNeverMatches() {
	result, err := s.engine.Verify(context.Background(), id.NewRequestID(),
		s.profile("John Doe", "1990-05-21"), "",
		s.extracted("John Doe", "1990-05-21", ""))
	s.Require().NoError(err)

	s.False(result.DocumentNumberMatch)
	s.Equal(domain.StatusFailed, result.FinalStatus)
}

func (s *EngineSuite) TestMultipleFailuresKeepFixedOrder() {
	result, err := s.engine.Verify(context.Background(), id.NewRequestID(),
		s.profile("John Doe", "1990-05-21"), "ABCDE1234F",
		s.extracted("Rahul Kumar", "1991-01-01", "XYZAB9876K"))
	s.Require().NoError(err)

	reason := result.DecisionReason
	nameIdx := strings.Index(reason, "Name mismatch")
	dobIdx := strings.Index(reason, "DOB mismatch")
	numIdx := strings.Index(reason, "Doc Number mismatch")
	s.Require().GreaterOrEqual(nameIdx, 0)
	s.Less(nameIdx, dobIdx)
	s.Less(dobIdx, numIdx)
}

func (s *EngineSuite) TestDeterministicDecision() {
	profile := s.profile("John Doe", "1990-05-21")
	extracted := s.extracted("Jon Doe", "1991-01-01", "XYZAB9876K")

	first, err := s.engine.Verify(context.Background(), id.NewRequestID(), profile, "ABCDE1234F", extracted)
	s.Require().NoError(err)
	second, err := s.engine.Verify(context.Background(), id.NewRequestID(), profile, "ABCDE1234F", extracted)
	s.Require().NoError(err)

	s.Equal(first.FinalStatus, second.FinalStatus)
	s.Equal(first.DecisionReason, second.DecisionReason)
	s.Equal(first.NameMatchScore, second.NameMatchScore)
}

func TestNameSimilarity(t *testing.T) {
	cases := []struct {
		name     string
		expected string
		found    string
		want     float64
	}{
		{"identical ignoring case", "John Doe", "JOHN DOE", 1.0},
		{"single edit", "John Doe", "Jon Doe", 0.875},
		{"empty expected", "", "John Doe", 0.0},
		{"empty found", "John Doe", "", 0.0},
		{"both empty", "", "", 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NameSimilarity(tc.expected, tc.found)
			if got < tc.want-0.0001 || got > tc.want+0.0001 {
				t.Fatalf("NameSimilarity(%q, %q) = %v, want %v", tc.expected, tc.found, got, tc.want)
			}
		})
	}
}
