package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// AdviceClient calls the advice-generation service (the LLM boundary). The
// call is best effort and breaker-protected so a slow model endpoint never
// stalls message handling.
type AdviceClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewAdviceClient(baseURL string) *AdviceClient {
	return &AdviceClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "advice-service",
		}),
	}
}

type adviceRequest struct {
	Topic string            `json:"topic"`
	Facts map[string]string `json:"facts"`
}

type adviceResponse struct {
	Advice string `json:"advice"`
}

// GenerateAdvice returns structured advice text for a topic and fact set.
func (c *AdviceClient) GenerateAdvice(ctx context.Context, topic string, facts map[string]string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("advice service not configured")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := json.Marshal(adviceRequest{Topic: topic, Facts: facts})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/advice", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("advice service returned non-200 status code: %d", resp.StatusCode)
		}
		var out adviceResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, err
		}
		return out.Advice, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
