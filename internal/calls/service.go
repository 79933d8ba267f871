package calls

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"callscreen-platform/internal/extraction"

	"github.com/google/uuid"
)

// Repository is the persistence contract for call records.
//
// Upsert must be a single atomic insert-or-update keyed by conversation id;
// a lookup followed by an insert races under duplicate webhook deliveries.
type Repository interface {
	Upsert(ctx context.Context, rec CallRecord) (CallRecord, error)
	Get(ctx context.Context, id string) (CallRecord, error)
	SetQualification(ctx context.Context, id string, q Qualification, now time.Time) (CallRecord, error)
	Query(ctx context.Context, f Filter) ([]CallRecord, error)
	// Stats counts rows; TodayCalls covers rows created at or after since.
	Stats(ctx context.Context, since time.Time) (Stats, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]CallRecord, error)
	ListAll(ctx context.Context) ([]CallRecord, error)
}

type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Upsert extracts qualification facts from raw and stores the record keyed
// by conversationID.
func (s *Service) Upsert(ctx context.Context, conversationID, agentID, status string, raw []byte) (CallRecord, error) {
	if s.repo == nil {
		return CallRecord{}, errors.New("calls: repository not configured")
	}
	if conversationID == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		return CallRecord{}, ErrInvalidArgument
	}

	extracted := extraction.Extract(raw)
	now := s.clock().UTC()

	return s.repo.Upsert(ctx, CallRecord{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		AgentID:        agentID,
		Status:         status,
		FirstName:      extracted.FirstName,
		LastName:       extracted.LastName,
		Phone:          extracted.Phone,
		Qualified:      QualificationFor(extracted),
		RawData:        json.RawMessage(raw),
		ExtractedData:  extracted,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// SetQualification records a manual review outcome.
func (s *Service) SetQualification(ctx context.Context, id string, q Qualification) (CallRecord, error) {
	if id == "" || !q.Valid() {
		return CallRecord{}, ErrInvalidArgument
	}
	return s.repo.SetQualification(ctx, id, q, s.clock().UTC())
}

func (s *Service) Get(ctx context.Context, id string) (CallRecord, error) {
	if id == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, id)
}

// Query lists records newest first.
func (s *Service) Query(ctx context.Context, f Filter) ([]CallRecord, error) {
	f.Limit = clampLimit(f.Limit)
	return s.repo.Query(ctx, f)
}

// Stats summarises the store. TodayCalls counts records created since local
// midnight of the service clock.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := s.clock()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	st, err := s.repo.Stats(ctx, midnight)
	if err != nil {
		return Stats{}, err
	}
	st.QualificationRate = QualificationRate(st.Qualified, st.Reviewed)
	return st, nil
}

// ListBetween returns records created in [from, to], newest first.
func (s *Service) ListBetween(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	if to.Before(from) {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListBetween(ctx, from, to)
}

func (s *Service) ListAll(ctx context.Context) ([]CallRecord, error) {
	return s.repo.ListAll(ctx)
}

// QualificationRate is qualified/reviewed as a rounded percentage, 0 when
// nothing has been reviewed.
func QualificationRate(qualified, reviewed int) int {
	if reviewed <= 0 {
		return 0
	}
	return int(math.Round(float64(qualified) / float64(reviewed) * 100))
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
