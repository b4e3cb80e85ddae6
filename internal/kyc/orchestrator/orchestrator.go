// Package orchestrator ties the verification pipeline together: the
// submission entry point on one side and queue-driven processing on the
// other. It owns no persistence of its own.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/document"
	"kyc-gateway/internal/kyc/extraction"
	"kyc-gateway/internal/kyc/metrics"
	"kyc-gateway/internal/kyc/ports"
	"kyc-gateway/internal/kyc/request"
	"kyc-gateway/internal/kyc/verification"
	id "kyc-gateway/pkg/domain"
	pkgerrors "kyc-gateway/pkg/errors"
	"kyc-gateway/pkg/platform/sentinel"
)

// Orchestrator coordinates submission and processing across the request,
// document, extraction, and verification services.
type Orchestrator struct {
	requests    *request.Service
	documents   *document.Service
	extractor   *extraction.Service
	engine      *verification.Engine
	profiles    ports.ProfileStore
	extractions ports.ExtractionStore
	queue       ports.Queue
	tx          ports.TxRunner
	metrics     *metrics.Metrics
	clock       ports.Clock
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithClock(clock ports.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// Deps bundles the collaborators the orchestrator requires.
type Deps struct {
	Requests    *request.Service
	Documents   *document.Service
	Extractor   *extraction.Service
	Engine      *verification.Engine
	Profiles    ports.ProfileStore
	Extractions ports.ExtractionStore
	Queue       ports.Queue
	Tx          ports.TxRunner
}

func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Requests == nil:
		return nil, fmt.Errorf("request service is required")
	case deps.Documents == nil:
		return nil, fmt.Errorf("document service is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case deps.Engine == nil:
		return nil, fmt.Errorf("verification engine is required")
	case deps.Profiles == nil:
		return nil, fmt.Errorf("profile store is required")
	case deps.Extractions == nil:
		return nil, fmt.Errorf("extraction store is required")
	case deps.Queue == nil:
		return nil, fmt.Errorf("queue is required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner is required")
	}
	o := &Orchestrator{
		requests:    deps.Requests,
		documents:   deps.Documents,
		extractor:   deps.Extractor,
		engine:      deps.Engine,
		profiles:    deps.Profiles,
		extractions: deps.Extractions,
		queue:       deps.Queue,
		tx:          deps.Tx,
		clock:       ports.ClockFunc(time.Now),
		tracer:      otel.Tracer("kyc-gateway/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Submit validates the upload, opens or reopens a request, stores the
// document, and enqueues the request for processing. The file is validated
// before any state is written so a rejected upload leaves nothing behind.
func (o *Orchestrator) Submit(ctx context.Context, userID id.UserID, documentType domain.DocumentType, file document.Upload, documentNumber string) (*domain.VerificationRequest, error) {
	if !documentType.Valid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidInput, "unknown document type %q", documentType)
	}
	if err := o.documents.Validate(file); err != nil {
		return nil, err
	}

	verified, err := o.documents.IsVerified(ctx, userID, documentType, documentNumber)
	if err != nil {
		return nil, err
	}
	if verified {
		return nil, fmt.Errorf("%w: document %s is already verified",
			domain.ErrAlreadyVerified, documentType)
	}

	req, err := o.requests.CreateOrReuse(ctx, userID, documentType)
	if err != nil {
		return nil, err
	}
	if _, err := o.documents.Save(ctx, req.ID, documentType, file, documentNumber); err != nil {
		return nil, err
	}
	if err := o.queue.Enqueue(ctx, req.ID); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "enqueue request")
	}

	o.metrics.SubmissionAccepted(string(documentType))
	if o.logger != nil {
		o.logger.InfoContext(ctx, "submission accepted",
			"request_id", req.ID.String(),
			"user_id", userID.String(),
			"document_type", string(documentType),
			"attempt", req.AttemptNumber,
		)
	}
	return req, nil
}

// Process drives one queued request to a terminal status. Redeliveries of
// already-claimed or deleted requests are dropped without error, so the queue
// can safely deliver more than once. Failures after a successful claim mark
// the request FAILED rather than bubbling up, keeping one bad item from
// wedging a worker.
func (o *Orchestrator) Process(ctx context.Context, requestID id.RequestID) error {
	ctx, span := o.tracer.Start(ctx, "kyc.process",
		trace.WithAttributes(attribute.String("kyc.request_id", requestID.String())))
	defer span.End()

	started := o.clock.Now()

	claimed, err := o.requests.Claim(ctx, requestID)
	if err != nil {
		return err
	}
	if !claimed {
		if _, err := o.requests.Get(ctx, requestID); errors.Is(err, domain.ErrRequestNotFound) {
			if o.logger != nil {
				o.logger.WarnContext(ctx, "queued request no longer exists",
					"request_id", requestID.String())
			}
			return nil
		}
		o.metrics.DuplicateClaim()
		if o.logger != nil {
			o.logger.InfoContext(ctx, "request already claimed, dropping delivery",
				"request_id", requestID.String())
		}
		return nil
	}

	status, err := o.process(ctx, requestID)
	if err != nil {
		o.markFailed(ctx, requestID, err)
		status = domain.StatusFailed
	}

	o.metrics.Processed(string(status))
	o.metrics.ObserveProcessing(o.clock.Now().Sub(started))
	span.SetAttributes(attribute.String("kyc.final_status", string(status)))
	return nil
}

// process runs the claimed request through extraction and verification.
// Extraction happens outside any transaction; only the finalize step, which
// writes the extraction row, the decision, and the terminal status, runs as
// one transactional unit.
func (o *Orchestrator) process(ctx context.Context, requestID id.RequestID) (domain.Status, error) {
	req, err := o.requests.Get(ctx, requestID)
	if err != nil {
		return "", err
	}
	doc, data, err := o.documents.Load(ctx, requestID)
	if err != nil {
		return "", err
	}
	profile, err := o.profiles.Find(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", fmt.Errorf("no profile for user %s", req.UserID)
		}
		return "", fmt.Errorf("load profile: %w", err)
	}

	extracted, err := o.extractor.Extract(ctx, req.DocumentType, data)
	if err != nil {
		o.metrics.ExtractionFailed()
		return "", err
	}

	row := &domain.ExtractedData{
		ID:             uuid.New(),
		DocumentID:     doc.ID,
		Name:           extracted.Name,
		Dob:            extracted.Dob,
		DocumentNumber: extracted.DocumentNumber,
		RawText:        extracted.RawText,
		CreatedAt:      o.clock.Now(),
	}

	var status domain.Status
	err = o.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := o.extractions.Create(ctx, row); err != nil {
			return fmt.Errorf("store extracted data: %w", err)
		}
		result, err := o.engine.Verify(ctx, requestID, profile, doc.DocumentNumber, row)
		if err != nil {
			return err
		}
		status = result.FinalStatus
		reason := ""
		if status == domain.StatusFailed {
			reason = result.DecisionReason
		}
		return o.requests.UpdateStatus(ctx, requestID, status, reason)
	})
	if err != nil {
		return "", err
	}
	if o.logger != nil {
		o.logger.InfoContext(ctx, "request processed",
			"request_id", requestID.String(),
			"status", string(status),
		)
	}
	return status, nil
}

// markFailed records a processing error as a terminal FAILED status. Errors
// here are logged and swallowed; the request stays PROCESSING and an
// operator has to intervene.
func (o *Orchestrator) markFailed(ctx context.Context, requestID id.RequestID, cause error) {
	reason := "Processing error: " + cause.Error()
	if err := o.requests.UpdateStatus(ctx, requestID, domain.StatusFailed, reason); err != nil {
		if o.logger != nil {
			o.logger.ErrorContext(ctx, "failed to record processing failure",
				"request_id", requestID.String(),
				"cause", cause.Error(),
				"error", err.Error(),
			)
		}
		return
	}
	if o.logger != nil {
		o.logger.WarnContext(ctx, "request failed during processing",
			"request_id", requestID.String(),
			"reason", reason,
		)
	}
}
