package relay

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/provider"
)

var ErrUpstream = errors.New("upstream_error")

// Upstream performs the chat-completion call against a resolved provider.
type Upstream struct {
	client *http.Client
}

func NewUpstream(cfg config.Config) *Upstream {
	timeout := time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	return &Upstream{
		client: &http.Client{Timeout: timeout},
	}
}

func (u *Upstream) ChatCompletions(ctx context.Context, p provider.Provider, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, ErrUpstream
	}
	return resp, nil
}
