package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.etherscan.io/api"
	DefaultTimeout = 10 * time.Second

	noTransactionsFound = "No transactions found"
)

// Request is one GET against the explorer. Optional fields are omitted from
// the query when zero.
type Request struct {
	Module          string
	Action          string
	Address         string
	ContractAddress string
	StartBlock      *uint64
	EndBlock        *uint64
	Page            int
	Offset          int
	Sort            string
}

func (r Request) params() map[string]string {
	p := map[string]string{
		"module": r.Module,
		"action": r.Action,
	}
	if r.Address != "" {
		p["address"] = strings.ToLower(r.Address)
	}
	if r.ContractAddress != "" {
		p["contractaddress"] = strings.ToLower(r.ContractAddress)
	}
	if r.StartBlock != nil {
		p["startblock"] = strconv.FormatUint(*r.StartBlock, 10)
	}
	if r.EndBlock != nil {
		p["endblock"] = strconv.FormatUint(*r.EndBlock, 10)
	}
	if r.Page > 0 {
		p["page"] = strconv.Itoa(r.Page)
	}
	if r.Offset > 0 {
		p["offset"] = strconv.Itoa(r.Offset)
	}
	if r.Sort != "" {
		p["sort"] = r.Sort
	}
	return p
}

// API performs a single explorer call and returns the unwrapped result.
//
//go:generate mockgen -source=http.go -destination=../mocks/explorer_api.go -package=mocks -mock_names=API=MockExplorerAPI
type API interface {
	Call(ctx context.Context, req Request) (json.RawMessage, error)
}

type HTTPOptions struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	// MaxInFlight caps concurrent requests, 0 means unbounded.
	MaxInFlight int64
	NewBackOff  func() backoff.BackOff
	Logger      *zap.SugaredLogger
}

type httpAPI struct {
	client     *resty.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	sem        *semaphore.Weighted
	newBackOff func() backoff.BackOff
	logger     *zap.SugaredLogger
}

func NewHTTP(opts HTTPOptions) API {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	newBackOff := opts.NewBackOff
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 30 * time.Second
			return b
		}
	}
	l := opts.Logger
	if l == nil {
		l = zap.NewNop().Sugar()
	}

	h := &httpAPI{
		client:     resty.New().SetTimeout(timeout),
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		newBackOff: newBackOff,
		logger:     l,
	}
	if opts.RequestsPerSecond > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	if opts.MaxInFlight > 0 {
		h.sem = semaphore.NewWeighted(opts.MaxInFlight)
	}
	return h
}

func (h *httpAPI) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	params := req.params()
	if h.apiKey != "" {
		params["apikey"] = h.apiKey
	}

	var (
		result    json.RawMessage
		transient bool
	)
	op := func() error {
		transient = false
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		if h.sem != nil {
			if err := h.sem.Acquire(ctx, 1); err != nil {
				return backoff.Permanent(err)
			}
			defer h.sem.Release(1)
		}

		resp, err := h.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(h.baseURL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			transient = true
			return err
		}

		code := resp.StatusCode()
		if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
			transient = true
			return fmt.Errorf("request failed with status: %s", resp.Status())
		}
		if resp.IsError() {
			return backoff.Permanent(&RemoteAPIError{
				Action:     req.Action,
				Message:    resp.Status(),
				Detail:     strings.TrimSpace(string(resp.Body())),
				StatusCode: code,
			})
		}

		result, err = unwrap(req.Action, resp.Body())
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	notify := func(err error, d time.Duration) {
		h.logger.Debugw("retrying explorer call", "action", req.Action, "address", req.Address, "delay", d, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(h.newBackOff(), ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if transient {
			return nil, fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, req.Action, err)
		}
		return nil, err
	}
	return result, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// unwrap accepts either a bare JSON array or a {status, message, result}
// envelope.
func unwrap(action string, body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.RawMessage(trimmed), nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", action, err)
	}
	if env.Status == "0" {
		if env.Message == noTransactionsFound {
			return json.RawMessage("[]"), nil
		}
		apiErr := &RemoteAPIError{Action: action, Message: env.Message}
		var detail string
		if json.Unmarshal(env.Result, &detail) == nil {
			apiErr.Detail = detail
		}
		return nil, apiErr
	}
	if len(env.Result) == 0 {
		return nil, errors.New("explorer " + action + ": empty result")
	}
	return env.Result, nil
}
