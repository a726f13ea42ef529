package netguard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// The model backend is an opaque collaborator: it takes a feature vector and
// returns a vector of predictions. Everything here is plain privileged JSON
// dispatch; the numeric content is not this layer's business.

// DetectedGame is one entry from the game-detection endpoint.
type DetectedGame struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsDetected bool   `json:"isDetected"`
}

// HealthStatus is the backend health report.
type HealthStatus struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// DetectGames queries the model backend for currently detected games. The
// result is cached briefly; detection state changes slowly.
func (c *Client) DetectGames(ctx context.Context) ([]DetectedGame, error) {
	var games []DetectedGame
	err := c.DispatchJSON(ctx, "/api/ml/game-detection", Options{
		TTL:        30 * time.Second,
		Privileged: true,
	}, &games)
	if err != nil {
		return nil, err
	}
	return games, nil
}

// Predict sends a feature vector to the model backend and returns its
// prediction vector. Never cached.
func (c *Client) Predict(ctx context.Context, features []float64) ([]float64, error) {
	body, err := json.Marshal(struct {
		Features []float64 `json:"features"`
	}{Features: features})
	if err != nil {
		return nil, err
	}
	var out struct {
		Predictions []float64 `json:"predictions"`
	}
	err = c.DispatchJSON(ctx, "/api/ml/predict", Options{
		Method:     http.MethodPost,
		Body:       body,
		Privileged: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

// Health fetches the backend health endpoint. TTL zero: a health check that
// serves cached data is not a health check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.DispatchJSON(ctx, "/api/health", Options{TTL: 0}, &hs)
	return hs, err
}
