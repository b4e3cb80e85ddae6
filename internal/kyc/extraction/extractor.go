// Package extraction turns raw document images into structured identity
// fields. Recognition is pluggable behind ports.Recognizer; the parsing
// heuristics here operate on the recognized text only.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	pkgerrors "kyc-gateway/pkg/errors"
)

// Result holds the fields parsed out of a recognized document.
type Result struct {
	DocumentType   domain.DocumentType
	Name           string
	Dob            *time.Time
	DocumentNumber string
	RawText        string
}

// Service detects the document type from recognized text, refuses documents
// that do not match the declared type, and parses out name, date of birth,
// and document number.
type Service struct {
	recognizer ports.Recognizer
	logger     *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(recognizer ports.Recognizer, opts ...Option) (*Service, error) {
	if recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	svc := &Service{recognizer: recognizer}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

var documentKeywords = map[domain.DocumentType][]string{
	domain.DocumentTypePAN:     {"income tax", "permanent account"},
	domain.DocumentTypeAadhaar: {"aadhaar", "unique identification", "government of india"},
}

// Extract recognizes the raw bytes and parses identity fields. A document
// whose text does not carry the declared type's keywords fails with
// DocumentTypeMismatchError before any field parsing happens. The declared
// type's keywords are checked first: a document carrying them passes even
// when another type's keywords also appear in the text.
func (s *Service) Extract(ctx context.Context, declared domain.DocumentType, data []byte) (*Result, error) {
	text, err := s.recognizer.Recognize(ctx, data)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "recognize document")
	}

	if !hasTypeKeywords(text, declared) {
		return nil, &domain.DocumentTypeMismatchError{
			Declared: declared,
			Detected: detectOtherType(text, declared),
		}
	}

	result := &Result{
		DocumentType:   declared,
		Name:           extractName(text, declared),
		Dob:            extractDob(text),
		DocumentNumber: extractDocumentNumber(text, declared),
		RawText:        text,
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "document fields extracted",
			"document_type", string(declared),
			"name_found", result.Name != "",
			"dob_found", result.Dob != nil,
			"number_found", result.DocumentNumber != "",
		)
	}
	return result, nil
}

func hasTypeKeywords(text string, docType domain.DocumentType) bool {
	lower := strings.ToLower(text)
	for _, keyword := range documentKeywords[docType] {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// detectOtherType names the type the document looks like, for the mismatch
// message. Empty when no known type's keywords appear at all.
func detectOtherType(text string, declared domain.DocumentType) domain.DocumentType {
	for _, docType := range domain.DocumentTypes() {
		if docType == declared {
			continue
		}
		if hasTypeKeywords(text, docType) {
			return docType
		}
	}
	return ""
}

var (
	nameLabelRe   = regexp.MustCompile(`(?i)^\s*name\s*[:\-]\s*(.+)$`)
	fatherLabelRe = regexp.MustCompile(`(?i)father'?s?\s*name`)
	dobLabelLine  = regexp.MustCompile(`(?i)\b(?:DOB|Date\s+of\s+Birth|Birth\s+Date|Year\s+of\s+Birth)\b`)
)

// extractName tries heuristics in order of reliability: an explicit name
// label, then card-layout position (the holder's name sits on the line above
// the father's-name label on PAN cards, and above the DOB label on both),
// and finally a scan for any line that survives cleaning and validation.
func extractName(text string, docType domain.DocumentType) string {
	lines := splitLines(text)

	for _, line := range lines {
		if m := nameLabelRe.FindStringSubmatch(line); m != nil {
			if name := cleanNameCandidate(m[1]); isPlausibleName(name) {
				return name
			}
		}
	}

	if docType == domain.DocumentTypePAN {
		if name := lineAboveMatch(lines, fatherLabelRe); isPlausibleName(name) {
			return name
		}
	}

	if name := lineAboveMatch(lines, dobLabelLine); isPlausibleName(name) {
		return name
	}

	for _, line := range lines {
		if name := cleanNameCandidate(line); isPlausibleName(name) {
			return name
		}
	}
	return ""
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func lineAboveMatch(lines []string, label *regexp.Regexp) string {
	for i, line := range lines {
		if label.MatchString(line) && i > 0 {
			return cleanNameCandidate(lines[i-1])
		}
	}
	return ""
}

// cleanNameCandidate strips recognition noise: trailing short lowercase
// tokens and non-letter characters clinging to the edges.
func cleanNameCandidate(raw string) string {
	fields := strings.Fields(strings.TrimSpace(raw))
	for len(fields) > 1 && isNoiseToken(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	joined := strings.Join(fields, " ")
	return strings.TrimFunc(joined, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func isNoiseToken(token string) bool {
	if len(token) < 2 || len(token) > 3 {
		return false
	}
	for _, r := range token {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}

var nameDenylist = []string{
	"india", "department", "signature", "account", "number", "card",
	"income", "tax", "govt", "government", "permanent", "aadhaar",
	"authority", "unique", "identification",
}

func isPlausibleName(candidate string) bool {
	if len(candidate) < 5 {
		return false
	}
	letters := 0
	total := 0
	for _, r := range candidate {
		total++
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '.':
		default:
			return false
		}
	}
	if float64(letters)/float64(total) < 0.7 {
		return false
	}
	for _, word := range strings.Fields(strings.ToLower(candidate)) {
		for _, banned := range nameDenylist {
			if word == banned {
				return false
			}
		}
	}
	return true
}

var (
	dobLabelRe    = regexp.MustCompile(`(?i)(?:DOB|Date\s+of\s+Birth|Birth\s+Date|Year\s+of\s+Birth)\s*[:\-]?\s*(\d{2,4}[-/]\d{1,2}[-/]\d{2,4}|\d{4})`)
	dobFallbackRe = regexp.MustCompile(`\d{2}[-/]\d{2}[-/]\d{4}`)
	dobSepRe      = regexp.MustCompile(`[-/]`)
)

// extractDob prefers a labeled date and falls back to the first
// dd/mm/yyyy-shaped token anywhere in the text.
func extractDob(text string) *time.Time {
	if m := dobLabelRe.FindStringSubmatch(text); m != nil {
		if dob := parseDob(m[1]); dob != nil {
			return dob
		}
	}
	if raw := dobFallbackRe.FindString(text); raw != "" {
		return parseDob(raw)
	}
	return nil
}

// parseDob normalizes the loosely formatted dates seen on cards. A bare year
// becomes January 1st of that year. For three-part dates, a leading 4-digit
// field is taken as the year; otherwise an impossible month value in the
// second position flips the interpretation to month/day/year.
func parseDob(raw string) *time.Time {
	parts := dobSepRe.Split(raw, -1)
	if len(parts) == 1 {
		if len(parts[0]) != 4 {
			return nil
		}
		year, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}
		return toDate(year, 1, 1)
	}
	if len(parts) != 3 {
		return nil
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		nums[i] = n
	}
	switch {
	case len(parts[0]) == 4:
		return toDate(nums[0], nums[1], nums[2])
	case nums[1] > 12:
		return toDate(nums[2], nums[0], nums[1])
	default:
		return toDate(nums[2], nums[1], nums[0])
	}
}

func toDate(year, month, day int) *time.Time {
	t, err := time.Parse("2006-01-02", fmt.Sprintf("%04d-%02d-%02d", year, month, day))
	if err != nil {
		return nil
	}
	return &t
}

var (
	panNumberRe     = regexp.MustCompile(`[A-Z]{5}[0-9]{4}[A-Z]`)
	aadhaarNumberRe = regexp.MustCompile(`\d{4}\s?\d{4}\s?\d{4}`)
	genericNumberRe = regexp.MustCompile(`(?i)\b(?:ID\s*NO|DOC\s*NO|Number|No)[:\s]+([A-Za-z0-9-]+)`)
)

func extractDocumentNumber(text string, docType domain.DocumentType) string {
	switch docType {
	case domain.DocumentTypePAN:
		if m := panNumberRe.FindString(text); m != "" {
			return m
		}
	case domain.DocumentTypeAadhaar:
		if m := aadhaarNumberRe.FindString(text); m != "" {
			return strings.ReplaceAll(m, " ", "")
		}
	}
	if m := genericNumberRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
