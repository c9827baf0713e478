package valuation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// ErrValuationFailed marks every failure to obtain a price. There is no safe
// substitute price, so callers must propagate it.
var ErrValuationFailed = errors.New("valuation failed")

// Provider produces a point price estimate with ranked contributing factors.
type Provider interface {
	Predict(ctx context.Context, q models.VehicleQuery) (*models.Valuation, error)
}

// Options holds settings for the model server client
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     uint64
	RequestsPerSec int

	// InitialInterval is the first retry delay; zero keeps the backoff default.
	InitialInterval time.Duration
}

// Client calls the valuation model server over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	interval   time.Duration
	logger     *logrus.Logger
}

// NewClient creates a valuation client.
func NewClient(opts Options, logger *logrus.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 20
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		maxRetries: opts.MaxRetries,
		interval:   opts.InitialInterval,
		logger:     logger,
	}
}

// Features is the model input row; attributes the buyer does not supply take
// the training set's most common values.
type Features struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	Odometer     int    `json:"odometer"`
	Condition    string `json:"condition"`
	Region       string `json:"region"`
	Fuel         string `json:"fuel"`
	Transmission string `json:"transmission"`
	Drive        string `json:"drive"`
	Type         string `json:"type"`
	TitleStatus  string `json:"title_status"`
	Cylinders    string `json:"cylinders"`
	PaintColor   string `json:"paint_color"`
	State        string `json:"state"`
}

// NewFeatures fills the model input row for q.
func NewFeatures(q models.VehicleQuery) Features {
	q = q.Normalize()
	state := q.Region
	if len(state) > 2 {
		state = state[:2]
	}
	return Features{
		Make:         q.Make,
		Model:        q.Model,
		Year:         q.Year,
		Odometer:     q.Mileage,
		Condition:    q.Condition,
		Region:       q.Region,
		Fuel:         "gas",
		Transmission: "automatic",
		Drive:        "fwd",
		Type:         "sedan",
		TitleStatus:  "clean",
		Cylinders:    "4 cylinders",
		PaintColor:   "white",
		State:        state,
	}
}

// statusError is a non-2xx answer from the model server
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("model server returned status %d: %s", e.StatusCode, e.Body)
}

// Predict asks the model server for a price. Server errors and transport
// failures are retried with exponential backoff; client errors are not.
func (c *Client) Predict(ctx context.Context, q models.VehicleQuery) (*models.Valuation, error) {
	body, err := json.Marshal(NewFeatures(q))
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrValuationFailed, err)
	}

	var result models.Valuation
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return c.do(ctx, body, &result)
	}

	strategy := backoff.NewExponentialBackOff()
	if c.interval > 0 {
		strategy.InitialInterval = c.interval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(strategy, c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.WithFields(logrus.Fields{
			"item":  q.ItemKey.String(),
			"error": err.Error(),
		}).Error("Valuation request failed")
		return nil, fmt.Errorf("%w: %v", ErrValuationFailed, err)
	}

	if result.PredictedPrice <= 0 {
		return nil, fmt.Errorf("%w: model server returned non-positive price %.2f", ErrValuationFailed, result.PredictedPrice)
	}
	result.PredictedPrice = models.Round2(result.PredictedPrice)
	return &result, nil
}

func (c *Client) do(ctx context.Context, body []byte, out *models.Valuation) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return &statusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if resp.StatusCode != http.StatusOK {
		return backoff.Permanent(&statusError{StatusCode: resp.StatusCode, Body: string(data)})
	}

	if err := json.Unmarshal(data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
