// Package response assembles read models for the presentation layer. Views
// join request, document, extraction, and decision data and apply masking,
// so callers never touch raw rows.
package response

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	"kyc-gateway/internal/kyc/request"
	id "kyc-gateway/pkg/domain"
	pkgerrors "kyc-gateway/pkg/errors"
	"kyc-gateway/pkg/masking"
	"kyc-gateway/pkg/platform/sentinel"
)

// RequestView is the externally visible shape of a verification request.
// DocumentNumber is masked to the last four characters when the view was
// built for a privileged viewer; owners see their own number in full.
type RequestView struct {
	RequestID      string     `json:"requestId"`
	UserID         string     `json:"userId"`
	DocumentType   string     `json:"documentType"`
	Status         string     `json:"status"`
	AttemptNumber  int        `json:"attemptNumber"`
	FailureReason  string     `json:"failureReason,omitempty"`
	SubmittedAt    time.Time  `json:"submittedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	DocumentNumber string     `json:"documentNumber,omitempty"`
	Decision       *Decision  `json:"decision,omitempty"`
}

// Decision summarizes the latest verification result of a request.
type Decision struct {
	NameMatchScore      float64   `json:"nameMatchScore"`
	DobMatch            bool      `json:"dobMatch"`
	DocumentNumberMatch bool      `json:"documentNumberMatch"`
	FinalStatus         string    `json:"finalStatus"`
	DecisionReason      string    `json:"decisionReason"`
	DecidedAt           time.Time `json:"decidedAt"`
}

// ExtractedView exposes the fields parsed from a processed document.
type ExtractedView struct {
	Name           string `json:"name"`
	Dob            string `json:"dob,omitempty"`
	DocumentNumber string `json:"documentNumber"`
}

// Builder assembles views from the pipeline's stores.
type Builder struct {
	requests    *request.Service
	documents   ports.DocumentStore
	extractions ports.ExtractionStore
	results     ports.ResultStore
}

func NewBuilder(requests *request.Service, documents ports.DocumentStore, extractions ports.ExtractionStore, results ports.ResultStore) (*Builder, error) {
	switch {
	case requests == nil:
		return nil, fmt.Errorf("request service is required")
	case documents == nil:
		return nil, fmt.Errorf("document store is required")
	case extractions == nil:
		return nil, fmt.Errorf("extraction store is required")
	case results == nil:
		return nil, fmt.Errorf("result store is required")
	}
	return &Builder{
		requests:    requests,
		documents:   documents,
		extractions: extractions,
		results:     results,
	}, nil
}

// View builds the full read model for one request. Privileged viewers get
// the document number masked; the owner sees it in full.
func (b *Builder) View(ctx context.Context, requestID id.RequestID, privileged bool) (*RequestView, error) {
	req, err := b.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	view := Project(req)

	doc, err := b.documents.ByRequest(ctx, requestID)
	switch {
	case err == nil:
		view.DocumentNumber = doc.DocumentNumber
		if privileged {
			view.DocumentNumber = masking.DocumentNumber(doc.DocumentNumber)
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// A request can briefly exist without its document row.
	default:
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load document")
	}

	results, err := b.results.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load verification results")
	}
	if len(results) > 0 {
		latest := results[0]
		view.Decision = &Decision{
			NameMatchScore:      latest.NameMatchScore,
			DobMatch:            latest.DobMatch,
			DocumentNumberMatch: latest.DocumentNumberMatch,
			FinalStatus:         string(latest.FinalStatus),
			DecisionReason:      latest.DecisionReason,
			DecidedAt:           latest.CreatedAt,
		}
	}
	return view, nil
}

// Status returns the view of the user's latest request for a document type.
func (b *Builder) Status(ctx context.Context, userID id.UserID, documentType domain.DocumentType, privileged bool) (*RequestView, error) {
	req, err := b.requests.Latest(ctx, userID, documentType)
	if err != nil {
		return nil, err
	}
	return b.View(ctx, req.ID, privileged)
}

// History lists all of the user's requests, newest first. No document or
// decision joins, so nothing needs masking.
func (b *Builder) History(ctx context.Context, userID id.UserID) ([]*RequestView, error) {
	reqs, err := b.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]*RequestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, Project(req))
	}
	return views, nil
}

// Extracted returns the parsed fields for a request's document. A request
// whose processing never produced an extraction row reports
// ErrExtractionIncomplete.
func (b *Builder) Extracted(ctx context.Context, requestID id.RequestID, privileged bool) (*ExtractedView, error) {
	doc, err := b.documents.ByRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: no document on record", domain.ErrExtractionIncomplete)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load document")
	}
	data, err := b.extractions.ByDocument(ctx, doc.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: document has not been processed", domain.ErrExtractionIncomplete)
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load extracted data")
	}

	view := &ExtractedView{
		Name:           data.Name,
		DocumentNumber: data.DocumentNumber,
	}
	if privileged {
		view.DocumentNumber = masking.DocumentNumber(data.DocumentNumber)
	}
	if data.Dob != nil {
		view.Dob = data.Dob.Format("2006-01-02")
	}
	return view, nil
}

// Project maps a request row to its view without joining related data.
func Project(req *domain.VerificationRequest) *RequestView {
	return &RequestView{
		RequestID:     req.ID.String(),
		UserID:        req.UserID.String(),
		DocumentType:  string(req.DocumentType),
		Status:        string(req.Status),
		AttemptNumber: req.AttemptNumber,
		FailureReason: req.FailureReason,
		SubmittedAt:   req.SubmittedAt,
		CompletedAt:   req.CompletedAt,
	}
}
