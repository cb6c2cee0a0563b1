package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultRoboflowURL = "https://detect.roboflow.com"

// RoboflowConfig identifies a hosted model version and its thresholds.
// Confidence and Overlap are percentages.
type RoboflowConfig struct {
	URL        string
	APIKey     string
	Model      string
	Version    int
	Confidence int
	Overlap    int
	Timeout    time.Duration
}

// Roboflow is a client for the Roboflow hosted detection API.
type Roboflow struct {
	endpoint   string
	apiKey     string
	confidence int
	overlap    int
	httpClient *http.Client
}

var _ Client = (*Roboflow)(nil)

// NewRoboflow returns a client for cfg. A zero Timeout leaves requests bound
// only by their context.
func NewRoboflow(cfg RoboflowConfig) *Roboflow {
	base := cfg.URL
	if base == "" {
		base = DefaultRoboflowURL
	}

	return &Roboflow{
		endpoint:   fmt.Sprintf("%s/%s/%d", strings.TrimRight(base, "/"), cfg.Model, cfg.Version),
		apiKey:     cfg.APIKey,
		confidence: cfg.Confidence,
		overlap:    cfg.Overlap,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type roboflowResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// ErrUnexpectedStatus is returned for any non-200 response.
type ErrUnexpectedStatus struct {
	StatusCode int
	Body       string
}

func (err ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("inference service returned %d: %s", err.StatusCode, err.Body)
}

var errNoAPIKey = errors.New("roboflow api key not configured")

// Predict uploads the base64 encoded image and returns the model's boxes.
func (r *Roboflow) Predict(ctx context.Context, jpeg []byte) ([]Prediction, error) {
	if r.apiKey == "" {
		return nil, errNoAPIKey
	}

	query := url.Values{}
	query.Set("api_key", r.apiKey)
	query.Set("confidence", strconv.Itoa(r.confidence))
	query.Set("overlap", strconv.Itoa(r.overlap))

	body := strings.NewReader(base64.StdEncoding.EncodeToString(jpeg))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"?"+query.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("unable to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ErrUnexpectedStatus{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var parsed roboflowResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("unable to decode inference response: %w", err)
	}

	return parsed.Predictions, nil
}
