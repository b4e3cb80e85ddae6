// Package verification compares extracted document fields against the
// user's reference profile and records the pass/fail decision.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	id "kyc-gateway/pkg/domain"
	pkgerrors "kyc-gateway/pkg/errors"
)

// DefaultNameMatchThreshold is the minimum name similarity, in [0,1],
// accepted as a match.
const DefaultNameMatchThreshold = 0.75

// Engine runs the three field checks and persists the resulting decision.
// Given the same inputs it always produces the same decision and reason.
type Engine struct {
	results       ports.ResultStore
	clock         ports.Clock
	logger        *slog.Logger
	nameThreshold float64
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithClock(clock ports.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithNameMatchThreshold(threshold float64) Option {
	return func(e *Engine) { e.nameThreshold = threshold }
}

func New(results ports.ResultStore, opts ...Option) (*Engine, error) {
	if results == nil {
		return nil, fmt.Errorf("result store is required")
	}
	eng := &Engine{
		results:       results,
		clock:         ports.ClockFunc(time.Now),
		nameThreshold: DefaultNameMatchThreshold,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng, nil
}

// Verify checks name, date of birth, and document number, then persists a
// VerificationResult for the request. The declared number is the one the
// user typed at submission; the extracted fields come from the document.
func (e *Engine) Verify(ctx context.Context, requestID id.RequestID, profile *domain.UserProfile, declaredNumber string, extracted *domain.ExtractedData) (*domain.VerificationResult, error) {
	score := NameSimilarity(profile.Name, extracted.Name) * 100
	nameMatch := score >= e.nameThreshold*100
	dobMatch := dobEqual(profile.Dob, extracted.Dob)
	numberMatch := numbersEqual(declaredNumber, extracted.DocumentNumber)

	status := domain.StatusVerified
	if !nameMatch || !dobMatch || !numberMatch {
		status = domain.StatusFailed
	}

	result := &domain.VerificationResult{
		ID:                  uuid.New(),
		RequestID:           requestID,
		NameMatchScore:      score,
		DobMatch:            dobMatch,
		DocumentNumberMatch: numberMatch,
		FinalStatus:         status,
		DecisionReason: decisionReason(
			nameMatch, dobMatch, numberMatch, score,
			profile, declaredNumber, extracted,
		),
		CreatedAt: e.clock.Now(),
	}
	if err := e.results.Create(ctx, result); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "store verification result")
	}
	if e.logger != nil {
		e.logger.InfoContext(ctx, "verification decided",
			"request_id", requestID.String(),
			"status", string(status),
			"name_score", score,
			"dob_match", dobMatch,
			"number_match", numberMatch,
		)
	}
	return result, nil
}

// decisionReason lists the failed checks in a fixed order so the same
// inputs always produce the same text.
func decisionReason(nameMatch, dobMatch, numberMatch bool, score float64, profile *domain.UserProfile, declaredNumber string, extracted *domain.ExtractedData) string {
	if nameMatch && dobMatch && numberMatch {
		return "All checks passed"
	}
	var b strings.Builder
	if !nameMatch {
		fmt.Fprintf(&b, "Name mismatch (Expected: %s, Found: %s, Score: %.2f%%). ",
			profile.Name, extracted.Name, score)
	}
	if !dobMatch {
		fmt.Fprintf(&b, "DOB mismatch (Expected: %s, Found: %s). ",
			formatDob(profile.Dob), formatDob(extracted.Dob))
	}
	if !numberMatch {
		fmt.Fprintf(&b, "Doc Number mismatch (Expected: %s, Found: %s). ",
			declaredNumber, extracted.DocumentNumber)
	}
	return strings.TrimSpace(b.String())
}

func formatDob(dob *time.Time) string {
	if dob == nil {
		return "N/A"
	}
	return dob.Format("2006-01-02")
}

// NameSimilarity returns a [0,1] similarity between two names based on
// case-insensitive edit distance. A missing name on either side scores 0.
func NameSimilarity(expected, found string) float64 {
	a := strings.ToLower(strings.TrimSpace(expected))
	b := strings.ToLower(strings.TrimSpace(found))
	if a == "" || b == "" {
		return 0
	}
	distance := levenshtein([]rune(a), []rune(b))
	longest := max(len([]rune(a)), len([]rune(b)))
	return 1 - float64(distance)/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func dobEqual(expected, found *time.Time) bool {
	if expected == nil || found == nil {
		return false
	}
	ey, em, ed := expected.Date()
	fy, fm, fd := found.Date()
	return ey == fy && em == fm && ed == fd
}

// numbersEqual compares document numbers ignoring case, spacing, and
// punctuation. An empty declared number never matches.
func numbersEqual(declared, found string) bool {
	d := normalizeNumber(declared)
	if d == "" {
		return false
	}
	return d == normalizeNumber(found)
}

func normalizeNumber(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
