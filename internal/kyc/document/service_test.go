package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/document/blob"
	docstore "kyc-gateway/internal/kyc/document/store"
	"kyc-gateway/internal/kyc/ports"
	reqstore "kyc-gateway/internal/kyc/request/store"
	id "kyc-gateway/pkg/domain"
)

type ServiceSuite struct {
	suite.Suite
	svc      *Service
	docs     *docstore.Memory
	requests *reqstore.Memory
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.requests = reqstore.NewMemory()
	s.docs = docstore.NewMemory(s.requests)

	svc, err := New(s.docs, blob.NewFS(s.T().TempDir()), nil,
		WithClock(ports.ClockFunc(func() time.Time { return s.now })))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) upload() Upload {
	return Upload{
		Filename:    "pan.png",
		ContentType: "image/png",
		Data:        []byte("INCOME TAX DEPARTMENT\nName: JOHN DOE\nABCDE1234F\n"),
	}
}

func (s *ServiceSuite) TestValidateRejectsEmptyFile() {
	err := s.svc.Validate(Upload{Filename: "pan.png", ContentType: "image/png"})
	s.Require().ErrorIs(err, domain.ErrFileValidationFailed)
}

func (s *ServiceSuite) TestValidateRejectsDisallowedType() {
	err := s.svc.Validate(Upload{
		Filename:    "pan.exe",
		ContentType: "application/octet-stream",
		Data:        []byte("x"),
	})
	s.Require().ErrorIs(err, domain.ErrFileValidationFailed)
}

func (s *ServiceSuite) TestValidateAcceptsDefaults() {
	for _, ct := range DefaultAllowedTypes {
		s.NoError(s.svc.Validate(Upload{Filename: "f", ContentType: ct, Data: []byte("x")}))
	}
}

func (s *ServiceSuite) TestSaveHashesAndStores() {
	requestID := id.NewRequestID()
	file := s.upload()

	doc, err := s.svc.Save(context.Background(), requestID, domain.DocumentTypePAN, file, "ABCDE1234F")
	s.Require().NoError(err)

	sum := sha256.Sum256(file.Data)
	s.Equal(hex.EncodeToString(sum[:]), doc.Hash)
	s.Equal(requestID, doc.RequestID)
	s.Equal("ABCDE1234F", doc.DocumentNumber)
	s.Equal(int64(len(file.Data)), doc.FileSize)
	s.Equal(s.now, doc.UploadedAt)

	loaded, data, err := s.svc.Load(context.Background(), requestID)
	s.Require().NoError(err)
	s.Equal(doc.ID, loaded.ID)
	s.Equal(file.Data, data)
}

func (s *ServiceSuite) TestLoadReturnsLatestUpload() {
	requestID := id.NewRequestID()

	_, err := s.svc.Save(context.Background(), requestID, domain.DocumentTypePAN, s.upload(), "ABCDE1234F")
	s.Require().NoError(err)

	s.now = s.now.Add(time.Minute)
	second := s.upload()
	second.Data = []byte("INCOME TAX DEPARTMENT\nName: JOHN DOE\nXYZAB9876K\n")
	want, err := s.svc.Save(context.Background(), requestID, domain.DocumentTypePAN, second, "XYZAB9876K")
	s.Require().NoError(err)

	loaded, _, err := s.svc.Load(context.Background(), requestID)
	s.Require().NoError(err)
	s.Equal(want.ID, loaded.ID)
}

func (s *ServiceSuite) TestIsVerifiedMatchesVerifiedRequestOnly() {
	ctx := context.Background()
	userID := id.NewUserID()
	requestID := id.NewRequestID()

	req := &domain.VerificationRequest{
		ID:            requestID,
		UserID:        userID,
		DocumentType:  domain.DocumentTypePAN,
		Status:        domain.StatusVerified,
		AttemptNumber: 1,
		SubmittedAt:   s.now,
		Timestamps:    domain.Timestamps{CreatedAt: s.now, UpdatedAt: s.now},
	}
	s.Require().NoError(s.requests.Create(ctx, req))
	_, err := s.svc.Save(ctx, requestID, domain.DocumentTypePAN, s.upload(), "ABCDE1234F")
	s.Require().NoError(err)

	verified, err := s.svc.IsVerified(ctx, userID, domain.DocumentTypePAN, "ABCDE1234F")
	s.Require().NoError(err)
	s.True(verified)

	verified, err = s.svc.IsVerified(ctx, userID, domain.DocumentTypePAN, "XYZAB9876K")
	s.Require().NoError(err)
	s.False(verified, "different number is a different document")

	verified, err = s.svc.IsVerified(ctx, id.NewUserID(), domain.DocumentTypePAN, "ABCDE1234F")
	s.Require().NoError(err)
	s.False(verified, "another user's document does not count")
}
