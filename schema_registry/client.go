package schema_registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aalemi-dev/eventpipe/observability"
)

// Client is the default implementation of Registry
// that communicates with Confluent Schema Registry over HTTP.
type Client struct {
	url        string
	httpClient *http.Client

	// ids are immutable in the registry, so bodies are cached forever.
	schemaCache      map[int]string
	schemaCacheMutex sync.RWMutex

	username string
	password string

	observer observability.Observer
	logger   Logger
}

var _ Registry = (*Client)(nil)

// NewClient creates a new schema registry client
// Returns the concrete *Client type.
func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("schema registry URL is required")
	}
	if _, err := url.ParseRequestURI(config.URL); err != nil {
		return nil, fmt.Errorf("invalid schema registry URL %q: %w", config.URL, err)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		url:         strings.TrimRight(config.URL, "/"),
		httpClient:  &http.Client{Timeout: config.Timeout},
		schemaCache: make(map[int]string),
		username:    config.Username,
		password:    config.Password,
	}, nil
}

// WithObserver sets the observer for this client and returns the client for method chaining.
func (c *Client) WithObserver(observer observability.Observer) *Client {
	c.observer = observer
	return c
}

// WithLogger sets the logger for this client and returns the client for method chaining.
func (c *Client) WithLogger(logger Logger) *Client {
	c.logger = logger
	return c
}

// WithHTTPClient replaces the underlying HTTP client, e.g. for custom TLS.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// GetSchemaByID retrieves a schema from the registry by its ID
func (c *Client) GetSchemaByID(ctx context.Context, id int) (string, error) {
	start := time.Now()
	sub := strconv.Itoa(id)

	c.schemaCacheMutex.RLock()
	schema, ok := c.schemaCache[id]
	c.schemaCacheMutex.RUnlock()
	if ok {
		observeOperation(c.observer, "get_schema_by_id", "registry", sub, time.Since(start), nil, map[string]interface{}{
			"cache_hit": true,
		})
		return schema, nil
	}

	var result struct {
		Schema string `json:"schema"`
	}
	status, err := c.do(ctx, http.MethodGet, "/schemas/ids/"+sub, nil, &result)
	observeOperation(c.observer, "get_schema_by_id", "registry", sub, time.Since(start), err, map[string]interface{}{
		"cache_hit":   false,
		"status_code": status,
	})
	if err != nil {
		c.logError(ctx, "failed to fetch schema by id", err, map[string]interface{}{"schema_id": id})
		return "", fmt.Errorf("get schema %d: %w", id, err)
	}

	c.schemaCacheMutex.Lock()
	c.schemaCache[id] = result.Schema
	c.schemaCacheMutex.Unlock()

	return result.Schema, nil
}

// GetLatestSchema retrieves the latest version of a schema for a subject
func (c *Client) GetLatestSchema(ctx context.Context, subject string) (*Metadata, error) {
	start := time.Now()

	var metadata Metadata
	status, err := c.do(ctx, http.MethodGet, "/subjects/"+url.PathEscape(subject)+"/versions/latest", nil, &metadata)
	if err != nil {
		observeOperation(c.observer, "get_latest_schema", subject, "latest", time.Since(start), err, map[string]interface{}{
			"status_code": status,
		})
		c.logError(ctx, "failed to fetch latest schema", err, map[string]interface{}{"subject": subject})
		return nil, fmt.Errorf("get latest schema for %s: %w", subject, err)
	}
	metadata.Subject = subject

	c.schemaCacheMutex.Lock()
	c.schemaCache[metadata.ID] = metadata.Schema
	c.schemaCacheMutex.Unlock()

	observeOperation(c.observer, "get_latest_schema", subject, "latest", time.Since(start), nil, map[string]interface{}{
		"schema_id":   metadata.ID,
		"version":     metadata.Version,
		"schema_type": metadata.Type,
	})
	return &metadata, nil
}

// RegisterSchema registers a new schema with the schema registry
func (c *Client) RegisterSchema(ctx context.Context, subject, schema, schemaType string) (int, error) {
	start := time.Now()

	var result struct {
		ID int `json:"id"`
	}
	status, err := c.do(ctx, http.MethodPost, "/subjects/"+url.PathEscape(subject)+"/versions", schemaPayload(schema, schemaType), &result)
	if err != nil {
		observeOperation(c.observer, "register_schema", subject, "", time.Since(start), err, map[string]interface{}{
			"schema_type": schemaType,
			"status_code": status,
		})
		c.logError(ctx, "failed to register schema", err, map[string]interface{}{"subject": subject})
		return 0, fmt.Errorf("register schema for %s: %w", subject, err)
	}

	c.schemaCacheMutex.Lock()
	c.schemaCache[result.ID] = schema
	c.schemaCacheMutex.Unlock()

	observeOperation(c.observer, "register_schema", subject, strconv.Itoa(result.ID), time.Since(start), nil, map[string]interface{}{
		"schema_type": schemaType,
		"schema_id":   result.ID,
	})
	c.logInfo(ctx, "schema registered", map[string]interface{}{"subject": subject, "schema_id": result.ID})
	return result.ID, nil
}

// CheckCompatibility checks if a schema is compatible with the existing schema for a subject
func (c *Client) CheckCompatibility(ctx context.Context, subject, schema, schemaType string) (bool, error) {
	start := time.Now()

	var result struct {
		IsCompatible bool `json:"is_compatible"`
	}
	status, err := c.do(ctx, http.MethodPost, "/compatibility/subjects/"+url.PathEscape(subject)+"/versions/latest", schemaPayload(schema, schemaType), &result)
	observeOperation(c.observer, "check_compatibility", subject, "latest", time.Since(start), err, map[string]interface{}{
		"schema_type":   schemaType,
		"status_code":   status,
		"is_compatible": result.IsCompatible,
	})
	if err != nil {
		return false, fmt.Errorf("check compatibility for %s: %w", subject, err)
	}
	if !result.IsCompatible {
		c.logWarn(ctx, "schema is not compatible with latest version", map[string]interface{}{"subject": subject})
	}
	return result.IsCompatible, nil
}

func schemaPayload(schema, schemaType string) map[string]interface{} {
	payload := map[string]interface{}{"schema": schema}
	if schemaType != "" && schemaType != SchemaTypeAvro {
		payload["schemaType"] = schemaType
	}
	return payload
}

// do performs one registry call and decodes a 200 response into out. It
// returns the HTTP status (0 when no response was received). Every failure
// wraps ErrSchemaUnavailable or one of its refinements; context errors are
// wrapped as well so callers can still tell a cancelled caller apart.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, body)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request: %w", ErrSchemaUnavailable, err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", contentType)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSchemaUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var regErr struct {
			ErrorCode int    `json:"error_code"`
			Message   string `json:"message"`
		}
		if json.Unmarshal(raw, &regErr) == nil && regErr.Message != "" {
			statusErr.ErrorCode = regErr.ErrorCode
			statusErr.Message = regErr.Message
		}
		return resp.StatusCode, statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: failed to decode response: %w", ErrSchemaUnavailable, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (c *Client) logWarn(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.WarnWithContext(ctx, msg, nil, fields)
	}
}

func (c *Client) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
