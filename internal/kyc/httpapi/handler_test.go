package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/document"
	"kyc-gateway/internal/kyc/document/blob"
	docstore "kyc-gateway/internal/kyc/document/store"
	"kyc-gateway/internal/kyc/extraction"
	extstore "kyc-gateway/internal/kyc/extraction/store"
	"kyc-gateway/internal/kyc/orchestrator"
	profilestore "kyc-gateway/internal/kyc/profile/store"
	"kyc-gateway/internal/kyc/queue"
	"kyc-gateway/internal/kyc/request"
	reqstore "kyc-gateway/internal/kyc/request/store"
	"kyc-gateway/internal/kyc/response"
	"kyc-gateway/internal/kyc/verification"
	verstore "kyc-gateway/internal/kyc/verification/store"
	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/tx"
)

const panText = "INCOME TAX DEPARTMENT\nName: JOHN DOE\nDOB: 21/05/1990\nABCDE1234F\n"

type HandlerSuite struct {
	suite.Suite
	server *httptest.Server
	orch   *orchestrator.Orchestrator
	userID id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.userID = id.NewUserID()

	reqStore := reqstore.NewMemory()
	docs := docstore.NewMemory(reqStore)
	extracts := extstore.NewMemory()
	results := verstore.NewMemory()
	profiles := profilestore.NewMemory()

	requests, err := request.New(reqStore)
	s.Require().NoError(err)
	documents, err := document.New(docs, blob.NewFS(s.T().TempDir()), nil)
	s.Require().NoError(err)
	extractor, err := extraction.New(extraction.NewPlainText())
	s.Require().NoError(err)
	engine, err := verification.New(results)
	s.Require().NoError(err)

	s.orch, err = orchestrator.New(orchestrator.Deps{
		Requests:    requests,
		Documents:   documents,
		Extractor:   extractor,
		Engine:      engine,
		Profiles:    profiles,
		Extractions: extracts,
		Queue:       queue.NewMemory(16),
		Tx:          tx.Passthrough{},
	})
	s.Require().NoError(err)

	views, err := response.NewBuilder(requests, docs, extracts, results)
	s.Require().NoError(err)

	dob := time.Date(1990, 5, 21, 0, 0, 0, 0, time.UTC)
	profiles.Put(&domain.UserProfile{UserID: s.userID, Name: "John Doe", Dob: &dob})

	s.server = httptest.NewServer(NewHandler(s.orch, views, requests, nil).Routes())
	s.T().Cleanup(s.server.Close)
}

func (s *HandlerSuite) multipartBody() (*bytes.Buffer, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	s.Require().NoError(w.WriteField("documentType", "PAN"))
	s.Require().NoError(w.WriteField("documentNumber", "ABCDE1234F"))

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="pan.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	s.Require().NoError(err)
	_, err = part.Write([]byte(panText))
	s.Require().NoError(err)
	s.Require().NoError(w.Close())
	return &buf, w.FormDataContentType()
}

func (s *HandlerSuite) submit() map[string]any {
	body, contentType := s.multipartBody()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/kyc/submit", body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-Id", s.userID.String())

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)

	var payload map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func (s *HandlerSuite) TestSubmitAccepted() {
	payload := s.submit()
	s.Equal("SUBMITTED", payload["status"])
	s.Equal("PAN", payload["documentType"])
	s.EqualValues(1, payload["attemptNumber"])
}

func (s *HandlerSuite) TestSubmitWithoutUserHeader() {
	body, contentType := s.multipartBody()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/kyc/submit", body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestConcurrentSubmitConflicts() {
	s.submit()

	body, contentType := s.multipartBody()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/kyc/submit", body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-Id", s.userID.String())

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *HandlerSuite) TestStatusShowsOwnerFullNumber() {
	payload := s.submit()
	requestID, err := id.ParseRequestID(payload["requestId"].(string))
	s.Require().NoError(err)
	s.Require().NoError(s.orch.Process(context.Background(), requestID))

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/kyc/status?documentType=PAN", nil)
	s.Require().NoError(err)
	req.Header.Set("X-User-Id", s.userID.String())

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var view map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&view))
	s.Equal("VERIFIED", view["status"])
	s.Equal("ABCDE1234F", view["documentNumber"])
}

func (s *HandlerSuite) TestAdminViewMasksDocumentNumber() {
	payload := s.submit()
	requestID := payload["requestId"].(string)

	req, err := http.NewRequest(http.MethodGet,
		s.server.URL+"/api/kyc/admin/requests/"+requestID, nil)
	s.Require().NoError(err)

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var view map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&view))
	s.Equal("******234F", view["documentNumber"])
}

func (s *HandlerSuite) TestUnknownRequestIs404() {
	req, err := http.NewRequest(http.MethodGet,
		s.server.URL+"/api/kyc/requests/"+id.NewRequestID().String(), nil)
	s.Require().NoError(err)

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestStatusWithUnknownTypeIs400() {
	req, err := http.NewRequest(http.MethodGet,
		s.server.URL+"/api/kyc/status?documentType=PASSPORT", nil)
	s.Require().NoError(err)
	req.Header.Set("X-User-Id", s.userID.String())

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestStatusForMapsCodes(t *testing.T) {
	cases := map[error]int{
		domain.ErrDailyLimitExceeded:      http.StatusTooManyRequests,
		domain.ErrConcurrentRequestExists: http.StatusConflict,
		domain.ErrRequestNotFound:         http.StatusNotFound,
		domain.ErrFileValidationFailed:    http.StatusBadRequest,
		domain.ErrExtractionIncomplete:    http.StatusUnprocessableEntity,
	}
	for err, want := range cases {
		require.Equal(t, want, statusFor(err), err.Error())
	}
	mismatch := &domain.DocumentTypeMismatchError{
		Declared: domain.DocumentTypeAadhaar,
		Detected: domain.DocumentTypePAN,
	}
	require.Equal(t, http.StatusUnprocessableEntity, statusFor(mismatch))
}
