package remote

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

	log "github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
)

const (
	decidePath         = "/decide/?v=3"
	defaultTimeout     = 10 * time.Second
	maxDecideBodyBytes = 10 << 20
)

type HTTPClientConfiguration struct {
	Host    string
	APIKey  string
	Timeout time.Duration
}

type HTTPClient struct {
	cfg    HTTPClientConfiguration
	client *http.Client
	schema *gojsonschema.Schema
	logger *log.Entry
}

type decideBody struct {
	APIKey      string            `json:"api_key"`
	DistinctID  string            `json:"distinct_id"`
	AnonymousID string            `json:"$anon_distinct_id,omitempty"`
	Groups      map[string]string `json:"$groups"`
}

func NewHTTPClient(cfg HTTPClientConfiguration, logger *log.Entry) (*HTTPClient, error) {
	if cfg.Host == "" {
		return nil, errors.New("no host set")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("no api key set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(decideSchema))
	if err != nil {
		return nil, fmt.Errorf("unable to load decide schema: %w", err)
	}

	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		schema: schema,
		logger: logger.WithField("component", "remote"),
	}, nil
}

func (c *HTTPClient) Decide(ctx context.Context, req DecideRequest) (*DecideResponse, error) {
	groups := req.Groups
	if groups == nil {
		groups = map[string]string{}
	}
	payload, err := json.Marshal(decideBody{
		APIKey:      c.cfg.APIKey,
		DistinctID:  req.DistinctID,
		AnonymousID: req.AnonymousID,
		Groups:      groups,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecideFailed, err)
	}

	url := strings.TrimRight(c.cfg.Host, "/") + decidePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecideFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecideFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDecideBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecideFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrDecideFailed, resp.StatusCode)
	}

	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecideFailed, err)
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			reasons = append(reasons, e.String())
		}
		return nil, fmt.Errorf("%w: invalid response: %s", ErrDecideFailed, strings.Join(reasons, "; "))
	}

	var decide DecideResponse
	if err := json.Unmarshal(body, &decide); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecideFailed, err)
	}
	c.logger.Debugf("decide returned %d flags for %s", len(decide.FeatureFlags), req.DistinctID)

	return &decide, nil
}
