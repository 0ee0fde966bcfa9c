package services

import (
	"context"
	"time"

	"github.com/healthmesh/agent-coordination/internal/repository"
)

const idempotencyKeyTTL = 24 * time.Hour

// IdempotencyService deduplicates HTTP trigger requests by request id so a
// retried POST does not publish the same event twice.
type IdempotencyService struct {
	redisRepo *repository.RedisRepository
}

func NewIdempotencyService(redisRepo *repository.RedisRepository) *IdempotencyService {
	return &IdempotencyService{redisRepo: redisRepo}
}

// IsDuplicate reports whether the request id has been seen before, claiming
// it atomically when it has not.
func (s *IdempotencyService) IsDuplicate(ctx context.Context, requestID string) (bool, error) {
	if requestID == "" {
		return false, nil
	}
	claimed, err := s.redisRepo.ClaimOnce(ctx, "idempotency:"+requestID, idempotencyKeyTTL)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Release frees a claimed request id. Called when the guarded operation
// failed after the claim, so the client can retry with the same id.
func (s *IdempotencyService) Release(ctx context.Context, requestID string) error {
	if requestID == "" {
		return nil
	}
	return s.redisRepo.Release(ctx, "idempotency:"+requestID)
}
