package wms

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

	"github.com/logistar/turnover-backend/pkg/config"
	pkgerrors "github.com/logistar/turnover-backend/pkg/errors"
	"github.com/logistar/turnover-backend/pkg/logger"
	"github.com/logistar/turnover-backend/pkg/metrics"
)

const (
	serviceInventoryLog = "getInventoryLog"
	serviceProductList  = "getProductList"

	operationTimeLayout = "2006-01-02 15:04:05"

	errorBodyReadLimit int64 = 1024
	askSuccess               = "Success"
)

var errTokenRequired = errors.New("wms user token is required")

// Client talks to the upstream WMS web-service endpoint. Every call is a JSON
// POST carrying a "service" discriminator plus pagination fields.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userToken  string
	pageSize   int
	maxMonths  int
	location   *time.Location

	logg *logger.Logger
	met  *metrics.SyncMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured endpoint URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the WMS client from configuration.
func NewClient(cfg config.WMSConfig, logg *logger.Logger, met *metrics.SyncMetrics, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(cfg.UserToken)
	if token == "" {
		return nil, errTokenRequired
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading wms timezone %q: %w", cfg.Timezone, err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxMonths := cfg.MaxChunkMonths
	if maxMonths <= 0 {
		maxMonths = 6
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		userToken:  token,
		pageSize:   pageSize,
		maxMonths:  maxMonths,
		location:   location,
		logg:       logg,
		met:        met,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.baseURL == "" {
		return nil, errors.New("wms base url is required")
	}

	return client, nil
}

// FetchInventoryLogs pulls every movement row whose operation time falls in
// [from, to]. The range is split into consecutive chunks of at most the
// configured month window, and each chunk is paged through sequentially. Any
// page failure aborts the whole fetch; there is no per-page retry.
func (c *Client) FetchInventoryLogs(ctx context.Context, from, to time.Time, warehouseID, customerCode string) ([]RawInventoryLog, error) {
	if from.After(to) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fetch window start is after its end")
	}

	var logs []RawInventoryLog
	for _, chunk := range splitRange(from.In(c.location), to.In(c.location), c.maxMonths) {
		filters := map[string]any{
			"operationTimeFrom": chunk.From.Format(operationTimeLayout),
			"operationTimeTo":   chunk.To.Format(operationTimeLayout),
		}
		if warehouseID != "" {
			filters["warehouseId"] = warehouseID
		}
		if customerCode != "" {
			filters["customerCode"] = customerCode
		}

		rows, err := c.fetchPages(ctx, serviceInventoryLog, filters)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			var log RawInventoryLog
			if err := json.Unmarshal(row, &log); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode inventory log row")
			}
			logs = append(logs, log)
		}
	}
	return logs, nil
}

// FetchProducts pulls the full product catalog.
func (c *Client) FetchProducts(ctx context.Context) ([]RawProduct, error) {
	rows, err := c.fetchPages(ctx, serviceProductList, nil)
	if err != nil {
		return nil, err
	}

	products := make([]RawProduct, 0, len(rows))
	for _, row := range rows {
		var product RawProduct
		if err := json.Unmarshal(row, &product); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode product row")
		}
		products = append(products, product)
	}
	return products, nil
}

// fetchPages walks a service's pagination until totalCount rows have been
// accumulated. A short page before the reported total ends the walk with a
// warning; the vendor occasionally reports a total larger than what it serves.
func (c *Client) fetchPages(ctx context.Context, service string, filters map[string]any) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	page := 1
	total := -1

	for {
		resp, err := c.post(ctx, service, filters, page)
		if err != nil {
			return nil, err
		}
		c.met.IncFetchPage(service)

		if total < 0 {
			total = int(resp.TotalCount)
		}

		if len(resp.Data) == 0 {
			if total > 0 && len(rows) < total {
				warnCtx := c.logg.WithFields(ctx, map[string]any{
					"service":  service,
					"page":     page,
					"received": len(rows),
					"reported": total,
				})
				c.logg.Warn(warnCtx, "wms returned short page before reported total")
			}
			break
		}

		rows = append(rows, resp.Data...)
		if total >= 0 && len(rows) >= total {
			break
		}
		page++
	}

	return rows, nil
}

func (c *Client) post(ctx context.Context, service string, filters map[string]any, page int) (*envelope, error) {
	body := map[string]any{
		"service":    service,
		"user_token": c.userToken,
		"page":       page,
		"pageSize":   c.pageSize,
	}
	for k, v := range filters {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal wms request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build wms request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute wms request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "wms request failed")
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode wms response")
	}

	if env.Ask != askSuccess {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("ask %q: %s", env.Ask, env.Message), "wms rejected request")
	}

	return &env, nil
}
