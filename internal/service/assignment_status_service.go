package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/grading"
	"github.com/noah-isme/gema-grading/internal/observability"
	"github.com/noah-isme/gema-grading/internal/repository"
)

// DefaultStatusCacheTTL bounds how long a computed status may be served.
const DefaultStatusCacheTTL = 5 * time.Minute

// AssignmentStatusService reports the time-window status of assessments.
type AssignmentStatusService interface {
	Status(ctx context.Context, assessmentID uint) (dto.AssessmentStatusResponse, error)
}

type assignmentStatusService struct {
	assessments repository.AssessmentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentStatusService builds the status service. A nil cache computes on every call.
func NewAssignmentStatusService(assessments repository.AssessmentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AssignmentStatusService {
	if ttl <= 0 {
		ttl = DefaultStatusCacheTTL
	}
	return &assignmentStatusService{
		assessments: assessments,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "assignment_status_service").Logger(),
		now:         time.Now,
	}
}

func statusCacheKey(assessmentID uint) string {
	return fmt.Sprintf("assessment:status:%d", assessmentID)
}

func (s *assignmentStatusService) Status(ctx context.Context, assessmentID uint) (dto.AssessmentStatusResponse, error) {
	now := s.now().UTC()
	cacheKey := statusCacheKey(assessmentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var entry grading.StatusEntry
			switch unmarshalErr := json.Unmarshal([]byte(cached), &entry); {
			case unmarshalErr != nil:
				observability.StatusCache().WithLabelValues("corrupt").Inc()
				s.logger.Warn().Err(unmarshalErr).Uint("assessment_id", assessmentID).Msg("discarding corrupt status cache entry")
			case entry.Fresh(now):
				observability.StatusCache().WithLabelValues("hit").Inc()
				return statusResponse(assessmentID, entry), nil
			default:
				observability.StatusCache().WithLabelValues("stale").Inc()
			}
		} else if errors.Is(err, redis.Nil) {
			observability.StatusCache().WithLabelValues("miss").Inc()
		} else {
			observability.StatusCache().WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Msg("failed to read status cache")
		}
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentStatusResponse{}, ErrAssessmentNotFound
		}
		return dto.AssessmentStatusResponse{}, err
	}

	start, end := assessment.Window()
	entry := grading.NewStatusEntry(grading.Window{Start: start, End: end}, now, s.cacheTTL)

	if s.cache != nil {
		if payload, err := json.Marshal(entry); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, entry.ValidUntil.Sub(now)).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store status cache")
			}
		}
	}

	return statusResponse(assessmentID, entry), nil
}

func statusResponse(assessmentID uint, entry grading.StatusEntry) dto.AssessmentStatusResponse {
	return dto.AssessmentStatusResponse{
		AssessmentID: assessmentID,
		Status:       string(entry.Value),
		ComputedAt:   entry.ComputedAt,
		ValidUntil:   entry.ValidUntil,
	}
}
