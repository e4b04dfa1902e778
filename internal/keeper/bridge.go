package keeper

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/kelsos/keeper-sync/internal/async"
	"github.com/kelsos/keeper-sync/internal/config"
	"github.com/kelsos/keeper-sync/internal/logger"
	"github.com/kelsos/keeper-sync/internal/models"
)

const updateTaskName = "keeper-updates"

type envelope struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *Error              `json:"error,omitempty"`
}

// Bridge reaches the extension through a local bridge page that relays
// calls to the injected WavesKeeper object.
type Bridge struct {
	baseURL      string
	client       *fasthttp.Client
	timeout      time.Duration
	pollInterval time.Duration
	scheduler    *async.Scheduler

	mu        sync.Mutex
	handlers  map[int]UpdateHandler
	nextID    int
	lastState []byte
	watcher   *async.Task
}

func NewBridge(cfg *config.Config, scheduler *async.Scheduler) *Bridge {
	return &Bridge{
		baseURL:      strings.TrimRight(cfg.BridgeURL, "/"),
		client:       &fasthttp.Client{Name: "keeper-sync"},
		timeout:      cfg.RequestTimeout,
		pollInterval: cfg.UpdatePollInterval,
		scheduler:    scheduler,
		handlers:     make(map[int]UpdateHandler),
	}
}

// Detect is a Detector backed by the bridge ping.
func (b *Bridge) Detect(ctx context.Context) (API, bool) {
	if err := b.Ping(ctx); err != nil {
		logger.Debug("Keeper bridge not reachable: %v", err)
		return nil, false
	}
	return b, true
}

func (b *Bridge) Ping(ctx context.Context) error {
	_, err := b.call(ctx, fasthttp.MethodGet, "/ping", nil)
	return err
}

func (b *Bridge) Initialize(ctx context.Context) error {
	_, err := b.call(ctx, fasthttp.MethodPost, "/initialize", nil)
	return err
}

func (b *Bridge) PublicState(ctx context.Context) (*models.PublicState, error) {
	raw, err := b.call(ctx, fasthttp.MethodGet, "/publicState", nil)
	if err != nil {
		return nil, err
	}

	var state models.PublicState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode public state: %w", err)
	}

	b.mu.Lock()
	b.lastState = append([]byte(nil), raw...)
	b.mu.Unlock()

	return &state, nil
}

func (b *Bridge) SignAndPublishTransaction(ctx context.Context, tx models.TransactionRequest) (string, error) {
	raw, err := b.call(ctx, fasthttp.MethodPost, "/signAndPublishTransaction", tx)
	if err != nil {
		return "", err
	}

	var signed string
	if err := json.Unmarshal(raw, &signed); err != nil {
		return "", fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	return signed, nil
}

// OnUpdate starts watching the bridge for state changes with the first handler
// and stops when the last one unsubscribes.
func (b *Bridge) OnUpdate(handler UpdateHandler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	if b.watcher == nil {
		b.watcher = b.scheduler.Every(context.Background(), updateTaskName, b.pollInterval, b.poll)
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			delete(b.handlers, id)
			if len(b.handlers) == 0 && b.watcher != nil {
				b.watcher.Stop()
				b.watcher = nil
			}
		})
	}
}

func (b *Bridge) poll(ctx context.Context, _ int) bool {
	raw, err := b.call(ctx, fasthttp.MethodGet, "/publicState", nil)
	if err != nil {
		logger.Debug("Keeper state poll failed: %v", err)
		return false
	}

	b.mu.Lock()
	changed := !bytes.Equal(raw, b.lastState)
	if changed {
		b.lastState = append([]byte(nil), raw...)
	}
	handlers := make([]UpdateHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	if !changed {
		return false
	}

	var state models.PublicState
	if err := json.Unmarshal(raw, &state); err != nil {
		logger.Error("Failed to decode keeper update: %v", err)
		return false
	}

	for _, h := range handlers {
		h(state)
	}
	return false
}

func (b *Bridge) call(ctx context.Context, method, path string, body interface{}) (jsoniter.RawMessage, error) {
	url := b.baseURL + path

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request body: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := b.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("failed to execute request to %s: %w", url, err)
		}
	} else {
		if err := b.client.DoTimeout(req, resp, b.timeout); err != nil {
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", url, err)
		}
	}

	rawBody := resp.Body()

	var env envelope
	if len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, &env); err != nil && resp.StatusCode() == fasthttp.StatusOK {
			return nil, fmt.Errorf("failed to decode bridge response from %s: %w", url, err)
		}
	}

	if env.Error != nil {
		return nil, env.Error
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("bridge request to %s failed with status %d: %s", url, resp.StatusCode(), string(rawBody))
	}

	return append(jsoniter.RawMessage(nil), env.Result...), nil
}
