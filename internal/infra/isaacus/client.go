package isaacus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL はIsaacus APIのエンドポイント
	DefaultBaseURL = "https://api.isaacus.com/v1"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 30 * time.Second

	// MaxRetries はレート制限・サーバエラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 1 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 16 * time.Second

	// DefaultRequestsPerSecond はクライアント側スロットリングの既定値
	DefaultRequestsPerSecond = 5
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	// ネットワーク呼び出しの前に設定エラーとして表面化させる
	ErrAPIKeyNotSet = errors.New("Isaacus API key not set: please set ISAACUS_API_KEY environment variable")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// APIError はIsaacus APIが返した失敗レスポンスを表す
// プロバイダのエラーペイロードを握りつぶさずに保持する
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("isaacus: API error (status=%d): %s", e.StatusCode, e.Message)
}

// Usage はAPIレスポンスに付随するトークン使用量
type Usage struct {
	InputTokens int `json:"input_tokens"`
}

// Client は Isaacus API のHTTPクライアント
// 埋め込み・リランク・抽出・分類の各アダプタが共有する
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption は Client のオプション設定
type ClientOption func(*Client)

// WithBaseURL はエンドポイントを上書きする（テスト用）
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient はHTTPクライアントを差し替える
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRequestsPerSecond はクライアント側のレート制限を上書きする
func WithRequestsPerSecond(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithClientLogger は Client にロガーを設定する
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient は新しい Client を作成する
// APIキーが空の場合は設定エラーを返し、以後の呼び出しを発生させない
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// errorPayload はAPIエラーレスポンスの形
type errorPayload struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// post はJSONリクエストを送り、レスポンスを out にデコードする
// 429と5xxはバックオフつきでリトライし、それ以外の失敗は即座に返す
func (c *Client) post(ctx context.Context, path string, reqBody, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("isaacus: request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("isaacus: failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("isaacus: malformed response: %w", err)
			}
			return nil
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		var ep errorPayload
		if json.Unmarshal(body, &ep) == nil {
			if ep.Error.Message != "" {
				apiErr.Message = ep.Error.Message
			} else if ep.Message != "" {
				apiErr.Message = ep.Message
			}
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Warn("isaacus request will be retried",
				"path", path,
				"status", resp.StatusCode,
				"attempt", attempt,
			)
			lastErr = apiErr
			continue
		}
		return apiErr
	}

	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}
