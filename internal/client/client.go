package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/kelsos/keeper-sync/internal/config"
	"github.com/kelsos/keeper-sync/internal/logger"
	"github.com/kelsos/keeper-sync/internal/metrics"
	"github.com/kelsos/keeper-sync/internal/models"
	"github.com/kelsos/keeper-sync/internal/networks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNodeResponse = errors.New("node returned an error")

// ResponseError carries the error body a node answered with.
type ResponseError struct {
	StatusCode int
	Code       interface{}
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("node error %v (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *ResponseError) Unwrap() error {
	return ErrNodeResponse
}

// NodeClient talks to the REST API of Waves nodes. The server is chosen per call
// since it follows the network the wallet is connected to.
type NodeClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewNodeClient(cfg *config.Config) *NodeClient {
	return &NodeClient{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.NodeRateLimit), max(cfg.NodeRateBurst, 1)),
	}
}

// BuildURL joins a node server and an endpoint path.
func (c *NodeClient) BuildURL(server, endpoint string) string {
	return networks.CheckSlash(server) + strings.TrimPrefix(endpoint, "/")
}

// GetDappMeta fetches the callable function signatures of a dApp.
func (c *NodeClient) GetDappMeta(ctx context.Context, server, address string) (*models.MetaResponse, error) {
	var res models.MetaResponse
	endpoint := fmt.Sprintf("addresses/scriptInfo/%s/meta", address)
	if err := c.get(ctx, "meta", server, endpoint, &res); err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, &ResponseError{StatusCode: http.StatusOK, Code: res.Error, Message: res.Message}
	}
	return &res, nil
}

// GetBalances fetches the non-native asset balances of an address.
func (c *NodeClient) GetBalances(ctx context.Context, server, address string) (*models.BalancesResponse, error) {
	var res models.BalancesResponse
	endpoint := fmt.Sprintf("assets/balance/%s", address)
	if err := c.get(ctx, "balance", server, endpoint, &res); err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, &ResponseError{StatusCode: http.StatusOK, Code: res.Error, Message: res.Message}
	}
	return &res, nil
}

// GetScriptInfo tells whether an account carries a script.
func (c *NodeClient) GetScriptInfo(ctx context.Context, server, address string) (*models.ScriptInfoResponse, error) {
	var res models.ScriptInfoResponse
	endpoint := fmt.Sprintf("addresses/scriptInfo/%s", address)
	if err := c.get(ctx, "scriptInfo", server, endpoint, &res); err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, &ResponseError{StatusCode: http.StatusOK, Code: res.Error, Message: res.Message}
	}
	return &res, nil
}

func (c *NodeClient) get(ctx context.Context, name, server, endpoint string, result interface{}) error {
	return c.request(ctx, name, http.MethodGet, server, endpoint, nil, result)
}

func (c *NodeClient) request(ctx context.Context, name, method, server, endpoint string, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	url := c.BuildURL(server, endpoint)
	start := time.Now()
	logger.Debug("Starting %s request to %s", method, url)

	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		requestBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, requestBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	metrics.NodeRequestDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		metrics.NodeRequests.WithLabelValues(name, "error").Inc()
		logger.Error("Request to %s failed after %v: %v", url, elapsed, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.NodeRequests.WithLabelValues(name, strconv.Itoa(resp.StatusCode)).Inc()
	logger.Debug("Request to %s completed in %v with status %d", url, elapsed, resp.StatusCode)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("%s: HTTP error %d: %s", url, resp.StatusCode, string(bodyBytes))
		nodeErr := &ResponseError{StatusCode: resp.StatusCode, Message: string(bodyBytes)}
		var decoded models.NodeError
		if json.Unmarshal(bodyBytes, &decoded) == nil && decoded.Failed() {
			nodeErr.Code = decoded.Error
			nodeErr.Message = decoded.Message
		}
		return nodeErr
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			logger.Error("%s: Error decoding response: %v", url, err)
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}
