package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/healthmesh/agent-coordination/internal/models"
	"github.com/healthmesh/agent-coordination/internal/repository"
)

// NutritionClient resolves a food name and portion into macro totals via the
// nutrition database service, with Redis-backed caching.
type NutritionClient struct {
	baseURL  string
	client   *http.Client
	cache    *repository.RedisRepository
	cacheTTL time.Duration
}

func NewNutritionClient(baseURL string, cache *repository.RedisRepository, cacheTTL time.Duration) *NutritionClient {
	return &NutritionClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Lookup returns macro totals for the food and portion, falling back to the
// cache when the service has answered this lookup recently.
func (c *NutritionClient) Lookup(ctx context.Context, food string, portion float64) (*models.NutritionFacts, error) {
	cacheKey := fmt.Sprintf("nutrition:%s:%.1f", food, portion)

	if c.cache != nil && c.cacheTTL > 0 {
		var cached models.NutritionFacts
		if ok, err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	lookupURL := fmt.Sprintf("%s/v1/foods/lookup?name=%s&portion=%.1f",
		c.baseURL, url.QueryEscape(food), portion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nutrition service returned non-200 status code: %d", resp.StatusCode)
	}

	var facts models.NutritionFacts
	if err := json.NewDecoder(resp.Body).Decode(&facts); err != nil {
		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		_ = c.cache.SetJSON(ctx, cacheKey, &facts, c.cacheTTL)
	}

	return &facts, nil
}
