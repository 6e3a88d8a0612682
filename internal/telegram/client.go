package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// BotAPI defines the interface for the Telegram Bot API methods we use.
// This allows for easier mocking in tests.
type BotAPI interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)
	SendAudio(ctx context.Context, req SendAudioRequest) (*Message, error)
	SendVideo(ctx context.Context, req SendVideoRequest) (*Message, error)
	SendPhoto(ctx context.Context, req SendPhotoRequest) (*Message, error)
	SendMediaGroup(ctx context.Context, req SendMediaGroupRequest) ([]Message, error)
	SendChatAction(ctx context.Context, req SendChatActionRequest) error
	SetMyCommands(ctx context.Context, req SetMyCommandsRequest) error
	SetWebhook(ctx context.Context, req SetWebhookRequest) error
	GetUpdates(ctx context.Context, req GetUpdatesRequest) ([]Update, error)
	GetToken() string
}

// Client is a client for the Telegram Bot API.
//
// Три изолированных HTTP-клиента:
//  1. httpClient - короткие JSON-вызовы (sendMessage, sendChatAction), таймаут 30s, retry
//  2. uploadClient - multipart-загрузки файлов до 100 МБ, длинный таймаут, без retry
//  3. longPollingClient - getUpdates, таймаут задаётся через context
//
// Long polling и загрузки не должны занимать соединения, нужные коротким вызовам.
type Client struct {
	token             string
	httpClient        *http.Client
	uploadClient      *http.Client
	longPollingClient *http.Client
	apiURL            string
}

// NewClient creates a new Telegram API client.
// An empty apiBaseURL means DefaultAPIURL.
func NewClient(token, apiBaseURL, proxyURL string) (*Client, error) {
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIURL
	}
	apiBaseURL = strings.TrimRight(apiBaseURL, "/")

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 0,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		DisableKeepAlives:     true,
	}

	// Загрузка 100 МБ через медленный канал может идти минутами,
	// поэтому ResponseHeaderTimeout здесь не ограничен.
	uploadTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     true,
	}

	longPollingTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          2,
		IdleConnTimeout:       120 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   1,
	}

	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
		uploadTransport.Proxy = http.ProxyURL(proxy)
		longPollingTransport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		uploadClient: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: uploadTransport,
		},
		longPollingClient: &http.Client{
			Timeout:   0,
			Transport: longPollingTransport,
		},
		apiURL: fmt.Sprintf("%s/bot%s", apiBaseURL, token),
	}, nil
}

// makeRequest performs a JSON request to the Telegram API with retry logic.
//
// Up to 2 attempts with a fixed 2s delay. Only network and decode failures are
// retried; a Telegram API error ("Bad Request" etc.) is returned immediately.
func (c *Client) makeRequest(ctx context.Context, method string, params interface{}) (*APIResponse, error) {
	startTime := time.Now()

	jsonParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s", c.apiURL, method)

	var lastErr error
	maxRetries := 2
	retryDelay := 2 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			recordRetry(method)

			select {
			case <-ctx.Done():
				recordRequestDuration(method, statusTimeout, time.Since(startTime).Seconds())
				recordError(method, errorTypeTimeout)
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonParams))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to perform request: %s", c.redact(err))
			if ctx.Err() != nil {
				recordRequestDuration(method, statusTimeout, time.Since(startTime).Seconds())
				recordError(method, errorTypeTimeout)
				return nil, lastErr
			}
			if isTimeoutError(err) {
				recordError(method, errorTypeTimeout)
			} else {
				recordError(method, errorTypeNetwork)
			}
			continue
		}

		var apiResp APIResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
			resp.Body.Close()
			lastErr = fmt.Errorf("failed to decode response: %w", decodeErr)
			recordError(method, errorTypeDecode)
			continue
		}
		resp.Body.Close()

		if !apiResp.Ok {
			recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
			recordError(method, errorTypeAPI)
			return nil, fmt.Errorf("telegram api error: %s", apiResp.Description)
		}

		recordRequestDuration(method, statusSuccess, time.Since(startTime).Seconds())
		return &apiResp, nil
	}

	recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
	return nil, lastErr
}

// isTimeoutError проверяет, является ли ошибка таймаутом
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled")
}

// redact removes the bot token from transport errors, which embed the request URL.
func (c *Client) redact(err error) string {
	if c.token == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), c.token, "[REDACTED]")
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	resp, err := c.makeRequest(ctx, "sendMessage", req)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// SetMyCommands changes the list of the bot's commands.
func (c *Client) SetMyCommands(ctx context.Context, req SetMyCommandsRequest) error {
	_, err := c.makeRequest(ctx, "setMyCommands", req)
	return err
}

// SetWebhook specifies a URL and receives incoming updates via an outgoing webhook.
func (c *Client) SetWebhook(ctx context.Context, req SetWebhookRequest) error {
	_, err := c.makeRequest(ctx, "setWebhook", req)
	return err
}

// SendChatAction tells the user that something is happening on the bot's side.
func (c *Client) SendChatAction(ctx context.Context, req SendChatActionRequest) error {
	_, err := c.makeRequest(ctx, "sendChatAction", req)
	return err
}

// GetUpdates receives incoming updates using long polling.
//
// Uses the dedicated longPollingClient (no client timeout). The deadline comes
// from the context: req.Timeout plus 10 seconds of network slack.
func (c *Client) GetUpdates(ctx context.Context, req GetUpdatesRequest) ([]Update, error) {
	const method = "getUpdates"
	startTime := time.Now()

	setLongPollingActive(true)
	defer setLongPollingActive(false)

	jsonParams, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s", c.apiURL, method)

	timeout := time.Duration(req.Timeout+10) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, apiURL, bytes.NewBuffer(jsonParams))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.longPollingClient.Do(httpReq)
	if err != nil {
		duration := time.Since(startTime).Seconds()
		if isTimeoutError(err) {
			recordRequestDuration(method, statusTimeout, duration)
			recordError(method, errorTypeTimeout)
		} else {
			recordRequestDuration(method, statusError, duration)
			recordError(method, errorTypeNetwork)
		}
		return nil, fmt.Errorf("failed to perform request: %s", c.redact(err))
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
		recordError(method, errorTypeDecode)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !apiResp.Ok {
		recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
		recordError(method, errorTypeAPI)
		return nil, fmt.Errorf("telegram api error: %s", apiResp.Description)
	}

	var updates []Update
	if err := json.Unmarshal(apiResp.Result, &updates); err != nil {
		recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
		recordError(method, errorTypeDecode)
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}

	recordRequestDuration(method, statusSuccess, time.Since(startTime).Seconds())
	if len(updates) > 0 {
		recordLongPollingUpdates(len(updates))
	}

	return updates, nil
}

// GetToken returns the bot token the client was created with.
func (c *Client) GetToken() string {
	return c.token
}
