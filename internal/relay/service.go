package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/observability/metrics"
	"github.com/tokengate/tokengate/internal/provider"
	"github.com/tokengate/tokengate/internal/tokenizer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FlushWriter is the streaming response surface: written bytes must reach
// the client as soon as they are flushed.
type FlushWriter interface {
	io.Writer
	http.Flusher
}

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Metrics    *metrics.Metrics
	Estimator  *tokenizer.Estimator
	Resolver   *provider.Resolver
	Upstream   *Upstream
	AccountSvc accountdomain.Service
	Finalizer  *Finalizer
}

type Service struct {
	log        *zap.Logger
	metrics    *metrics.Metrics
	estimator  *tokenizer.Estimator
	resolver   *provider.Resolver
	upstream   *Upstream
	accountSvc accountdomain.Service
	finalizer  *Finalizer

	chargePromptOnFailure bool
}

func New(p Params) *Service {
	return &Service{
		log:                   p.Log.Named("relay.service"),
		metrics:               p.Metrics,
		estimator:             p.Estimator,
		resolver:              p.Resolver,
		upstream:              p.Upstream,
		accountSvc:            p.AccountSvc,
		finalizer:             p.Finalizer,
		chargePromptOnFailure: p.Config.ChargePromptOnUpstreamFailure,
	}
}

// Prepared carries a request that passed the balance check and is ready to
// go upstream.
type Prepared struct {
	AccountID    snowflake.ID
	Model        string
	Stream       bool
	Provider     provider.Provider
	PromptTokens int

	body []byte
}

// Prepare estimates the prompt, runs the advisory balance check and builds
// the upstream payload. Nothing is reserved: the actual charge happens after
// the response, from the finalizer.
func (s *Service) Prepare(ctx context.Context, accountID snowflake.ID, req CompletionRequest) (Prepared, error) {
	if err := req.Validate(); err != nil {
		return Prepared{}, err
	}

	promptTokens := s.estimator.Estimate(req.PromptText())

	if err := s.accountSvc.CheckSufficient(ctx, accountID, promptTokens); err != nil {
		if errors.Is(err, accountdomain.ErrInsufficientBalance) {
			s.metrics.IncRelayRequest(req.Model, s.mode(req.Stream), metrics.RelayOutcomeInsufficientBalance)
		}
		return Prepared{}, err
	}

	prov := s.resolver.Resolve(req.Model)
	body, err := req.UpstreamBody(s.resolver.BodyPatch(req.Model))
	if err != nil {
		return Prepared{}, err
	}

	return Prepared{
		AccountID:    accountID,
		Model:        req.Model,
		Stream:       req.Stream,
		Provider:     prov,
		PromptTokens: promptTokens,
		body:         body,
	}, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type unaryResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Stream proxies the upstream SSE byte stream to the client verbatim while
// accumulating delta content for the settlement estimate. It always settles
// before returning, whatever ended the stream.
func (s *Service) Stream(ctx context.Context, w FlushWriter, p Prepared) {
	resp, err := s.upstream.ChatCompletions(ctx, p.Provider, p.body)
	if err != nil {
		s.writeStreamError(w, "upstream request failed")
		s.settle(p, 0, true)
		s.metrics.IncRelayRequest(p.Model, metrics.RelayModeStream, metrics.RelayOutcomeUpstreamError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn("upstream rejected stream request",
			zap.String("provider", p.Provider.Name),
			zap.String("model", p.Model),
			zap.Int("status", resp.StatusCode),
		)
		s.writeStreamError(w, "upstream returned "+resp.Status)
		s.settle(p, 0, true)
		s.metrics.IncRelayRequest(p.Model, metrics.RelayModeStream, metrics.RelayOutcomeUpstreamError)
		return
	}

	reader := bufio.NewReader(resp.Body)
	var content strings.Builder
	outcome := metrics.RelayOutcomeOK
	failed := false

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := w.Write(line); werr != nil {
				outcome = metrics.RelayOutcomeClientDisconnect
				break
			}
			w.Flush()

			if data, ok := strings.CutPrefix(strings.TrimRight(string(line), "\r\n"), "data: "); ok && data != "[DONE]" {
				var chunk streamChunk
				if json.Unmarshal([]byte(data), &chunk) == nil {
					for _, choice := range chunk.Choices {
						content.WriteString(choice.Delta.Content)
					}
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			if ctx.Err() != nil {
				outcome = metrics.RelayOutcomeClientDisconnect
				break
			}
			s.writeStreamError(w, "upstream stream interrupted")
			outcome = metrics.RelayOutcomeUpstreamError
			failed = true
			break
		}
	}

	completionTokens := 0
	if content.Len() > 0 {
		completionTokens = s.estimator.Estimate(content.String())
	}

	s.settle(p, completionTokens, failed)
	s.metrics.IncRelayRequest(p.Model, metrics.RelayModeStream, outcome)
}

// Unary relays a non-streaming completion and forwards the upstream response
// verbatim, including upstream error statuses.
func (s *Service) Unary(ctx context.Context, p Prepared) (int, []byte, error) {
	resp, err := s.upstream.ChatCompletions(ctx, p.Provider, p.body)
	if err != nil {
		s.settle(p, 0, true)
		s.metrics.IncRelayRequest(p.Model, metrics.RelayModeUnary, metrics.RelayOutcomeUpstreamError)
		return 0, nil, ErrUpstream
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.settle(p, 0, true)
		s.metrics.IncRelayRequest(p.Model, metrics.RelayModeUnary, metrics.RelayOutcomeUpstreamError)
		return 0, nil, ErrUpstream
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn("upstream rejected request",
			zap.String("provider", p.Provider.Name),
			zap.String("model", p.Model),
			zap.Int("status", resp.StatusCode),
		)
		s.settle(p, 0, true)
		s.metrics.IncRelayRequest(p.Model, metrics.RelayModeUnary, metrics.RelayOutcomeUpstreamError)
		return resp.StatusCode, body, nil
	}

	// Trust the upstream's usage block whenever it is present, an
	// authoritative zero included; fall back to estimating the first choice.
	completionTokens := 0
	var parsed unaryResponse
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Usage != nil:
			completionTokens = parsed.Usage.CompletionTokens
		case len(parsed.Choices) > 0 && parsed.Choices[0].Message.Content != "":
			completionTokens = s.estimator.Estimate(parsed.Choices[0].Message.Content)
		}
	}

	s.settle(p, completionTokens, false)
	s.metrics.IncRelayRequest(p.Model, metrics.RelayModeUnary, metrics.RelayOutcomeOK)
	return resp.StatusCode, body, nil
}

// settle enqueues the detached debit. An upstream failure that produced no
// output is charged for the prompt only when the policy says so; everything
// else is always charged.
func (s *Service) settle(p Prepared, completionTokens int, failed bool) {
	if failed && completionTokens == 0 && !s.chargePromptOnFailure {
		return
	}
	s.finalizer.Enqueue(accountdomain.DebitRequest{
		AccountID:        p.AccountID,
		Model:            p.Model,
		PromptTokens:     p.PromptTokens,
		CompletionTokens: completionTokens,
	})
}

func (s *Service) writeStreamError(w FlushWriter, message string) {
	payload, _ := json.Marshal(map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    "upstream_error",
		},
	})
	_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
	w.Flush()
}

func (s *Service) mode(stream bool) string {
	if stream {
		return metrics.RelayModeStream
	}
	return metrics.RelayModeUnary
}

var Module = fx.Module("relay",
	fx.Provide(
		NewUpstream,
		NewFinalizer,
		New,
	),
	fx.Invoke(registerFinalizer),
)
