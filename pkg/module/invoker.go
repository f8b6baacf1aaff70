package module

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
)

var validF0Methods = map[string]struct{}{
	"rmvpe":      {},
	"fcpe":       {},
	"crepe":      {},
	"crepe-tiny": {},
}

// Invoker runs conversions against the engine. The engine binds gpu memory
// and is not reentrant, one conversion occupies it at a time.
type Invoker struct {
	engine  Engine
	timeout time.Duration
	mu      sync.Mutex
}

func NewInvoker(engine Engine, timeout time.Duration) *Invoker {
	return &Invoker{
		engine:  engine,
		timeout: timeout,
	}
}

// ValidateParams check params against their declared bounds
func ValidateParams(p InferParams) error {
	if p.Pitch < config.PitchMin || p.Pitch > config.PitchMax {
		return NewVCError(InvalidParameters, "pitch must be between %d and %d, got %d",
			config.PitchMin, config.PitchMax, p.Pitch)
	}
	if p.IndexRatio < config.IndexRatioMin || p.IndexRatio > config.IndexRatioMax {
		return NewVCError(InvalidParameters, "index_ratio must be between %v and %v, got %v",
			config.IndexRatioMin, config.IndexRatioMax, p.IndexRatio)
	}
	if p.FilterRadius < config.FilterRadiusMin || p.FilterRadius > config.FilterRadiusMax {
		return NewVCError(InvalidParameters, "filter_radius must be between %d and %d, got %d",
			config.FilterRadiusMin, config.FilterRadiusMax, p.FilterRadius)
	}
	if p.RmsMixRate < config.RmsMixRateMin || p.RmsMixRate > config.RmsMixRateMax {
		return NewVCError(InvalidParameters, "rms_mix_rate must be between %v and %v, got %v",
			config.RmsMixRateMin, config.RmsMixRateMax, p.RmsMixRate)
	}
	if p.Protect < config.ProtectMin || p.Protect > config.ProtectMax {
		return NewVCError(InvalidParameters, "protect must be between %v and %v, got %v",
			config.ProtectMin, config.ProtectMax, p.Protect)
	}
	if _, ok := validF0Methods[p.F0Method]; !ok {
		return NewVCError(InvalidParameters, "f0_method %q not supported", p.F0Method)
	}
	return nil
}

// Run validate params and execute the conversion under the configured
// timeout. A timeout leaves the bound model instance valid.
func (v *Invoker) Run(ctx context.Context, cached *CachedModel, audio []byte, params InferParams) ([]byte, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	out, err := v.engine.Infer(ctx, cached.Artifacts, audio, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewVCError(InferenceTimeout, "conversion exceeded %s", v.timeout)
		}
		if errors.Is(err, context.Canceled) {
			return nil, NewVCError(Cancelled, "conversion cancelled")
		}
		var vcErr *VCError
		if errors.As(err, &vcErr) {
			return nil, err
		}
		return nil, NewVCError(InferenceError, "%s", err.Error())
	}
	// truncated output without an engine error is still an engine fault
	if len(out) == 0 {
		return nil, NewVCError(InferenceError, "engine returned empty audio")
	}
	return out, nil
}
