package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const encodingName = "cl100k_base"

// Estimator counts tokens for balance checks and usage metering. It prefers
// the cl100k_base BPE encoding and degrades to a character heuristic when the
// encoding cannot be loaded. Estimates never fail; metering must not block a
// request on tokenizer availability.
type Estimator struct {
	log *zap.Logger

	once       sync.Once
	enc        *tiktoken.Tiktoken
	approxOnly bool
}

type Params struct {
	fx.In

	Log *zap.Logger
}

func New(p Params) *Estimator {
	return &Estimator{log: p.Log.Named("tokenizer")}
}

// NewApproximate returns an estimator that always uses the character
// heuristic. Used by tests and as an explicit offline mode.
func NewApproximate() *Estimator {
	return &Estimator{log: zap.NewNop(), approxOnly: true}
}

// Estimate returns the token count for text. The same input always produces
// the same count within a process lifetime.
func (e *Estimator) Estimate(text string) int {
	if !e.approxOnly {
		e.once.Do(func() {
			enc, err := tiktoken.GetEncoding(encodingName)
			if err != nil {
				e.log.Warn("token encoding unavailable, using heuristic",
					zap.String("encoding", encodingName),
					zap.Error(err),
				)
				return
			}
			e.enc = enc
		})
		if e.enc != nil {
			return len(e.enc.Encode(text, nil, nil))
		}
	}
	return approximate(text)
}

func approximate(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

var Module = fx.Module("tokenizer",
	fx.Provide(New),
)
