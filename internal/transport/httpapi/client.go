// Package httpapi implements the sync protocol over HTTP: each protocol call
// is a POST of a snappy-compressed JSON body authenticated with a bearer token.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/internal/wire"
	"github.com/iudanet/edgesync/pkg/api"
)

// Client HTTP клиент протокола синхронизации.
type Client struct {
	httpClient *http.Client
	tokens     transport.TokenSource
	baseURL    string
}

var _ transport.Peer = (*Client)(nil)

// NewClient создает клиент к реплике по адресу baseURL.
// timeout ограничивает один запрос целиком.
func NewClient(baseURL string, tokens transport.TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// HTTPClient возвращает нижележащий http.Client (для измерителя сети).
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// BaseURL возвращает адрес реплики.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Negotiate(ctx context.Context, req *api.NegotiateRequest) (*api.NegotiateResponse, error) {
	var resp api.NegotiateResponse
	if err := c.doRequest(ctx, transport.MethodNegotiate, api.PathNegotiate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Push(ctx context.Context, req *api.PushRequest) (*api.PushResponse, error) {
	var resp api.PushResponse
	if err := c.doRequest(ctx, transport.MethodPush, api.PathPush, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Pull(ctx context.Context, req *api.PullRequest) (*api.PullResponse, error) {
	var resp api.PullResponse
	if err := c.doRequest(ctx, transport.MethodPull, api.PathPull, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Commit(ctx context.Context, req *api.CommitRequest) (*api.CommitResponse, error) {
	var resp api.CommitResponse
	if err := c.doRequest(ctx, transport.MethodCommit, api.PathCommit, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Abort(ctx context.Context, req *api.AbortRequest) error {
	return c.doRequest(ctx, transport.MethodAbort, api.PathAbort, req, nil)
}

func (c *Client) AcquireLease(ctx context.Context, req *api.LeaseRequest) (*api.LeaseResponse, error) {
	var resp api.LeaseResponse
	if err := c.doRequest(ctx, transport.MethodAcquireLease, api.PathLeaseAcquire, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ReleaseLease(ctx context.Context, req *api.LeaseRequest) error {
	return c.doRequest(ctx, transport.MethodReleaseLease, api.PathLeaseRelease, req, nil)
}

// Health проверяет доступность реплики. Токен не требуется.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+api.PathHealth, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var resp api.HealthResponse
	if err := c.do(req, "health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close освобождает простаивающие соединения.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doRequest выполняет POST запрос протокола
func (c *Client) doRequest(ctx context.Context, op, path string, body, result any) error {
	data, err := wire.EncodeBody(body, true)
	if err != nil {
		return syncerr.Protocol(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return syncerr.Protocol(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", wire.ContentType)
	req.Header.Set("Content-Encoding", wire.ContentEncoding)

	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return syncerr.Protocol(op, fmt.Errorf("failed to issue token: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, op, result)
}

func (c *Client) do(req *http.Request, op string, result any) error {
	req.Header.Set("Accept-Encoding", wire.ContentEncoding)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return syncerr.FromContext(op, ctxErr)
		}
		return syncerr.Network(op, fmt.Errorf("request failed: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, wire.MaxMessageSize+1))
	if err != nil {
		return syncerr.Network(op, fmt.Errorf("failed to read response body: %w", err))
	}
	encoding := resp.Header.Get("Content-Encoding")

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := wire.DecodeBody(respBody, encoding, &errResp); err != nil || errResp.Error == "" {
			return transport.ErrorFrom(op, resp.StatusCode, nil)
		}
		return transport.ErrorFrom(op, resp.StatusCode, &errResp)
	}

	if result != nil {
		if err := wire.DecodeBody(respBody, encoding, result); err != nil {
			return syncerr.Protocol(op, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return nil
}
