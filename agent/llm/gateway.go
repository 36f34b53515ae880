package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/contract"
	"github.com/portsense/portsense/pkg/openrouter"
)

// Builder constructs a chat model for a given model name and temperature.
type Builder func(ctx context.Context, name string, temperature float32) (model.ToolCallingChatModel, error)

type cacheKey struct {
	tier        contract.ModelTier
	temperature float32
}

// Gateway is the single access point for language-model calls. It caches one
// chat model per tier and temperature and spaces all calls by MinCallInterval.
type Gateway struct {
	conf  Config
	build Builder

	mu    sync.Mutex
	cache map[cacheKey]model.ToolCallingChatModel

	gateMu   sync.Mutex
	lastCall time.Time
}

var _ contract.ModelGateway = (*Gateway)(nil)

// New wires the gateway to the OpenRouter provider config.
func New(provider openrouter.Config, conf Config) *Gateway {
	return NewWithBuilder(conf, func(ctx context.Context, name string, temperature float32) (model.ToolCallingChatModel, error) {
		c := provider.WithModel(name, temperature)
		return c.New(ctx)
	})
}

// NewWithBuilder lets tests substitute the model constructor.
func NewWithBuilder(conf Config, build Builder) *Gateway {
	if conf.MinCallInterval <= 0 {
		conf.MinCallInterval = time.Second
	}
	return &Gateway{
		conf:  conf,
		build: build,
		cache: make(map[cacheKey]model.ToolCallingChatModel),
	}
}

func (g *Gateway) tierSpec(tier contract.ModelTier) (string, float32) {
	switch tier {
	case contract.TierMedium:
		return g.conf.MediumModel, g.conf.MediumTemperature
	case contract.TierLarge:
		return g.conf.LargeModel, g.conf.LargeTemperature
	default:
		return g.conf.SmallModel, g.conf.SmallTemperature
	}
}

func (g *Gateway) modelFor(ctx context.Context, tier contract.ModelTier) (model.ToolCallingChatModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	name, temperature := g.tierSpec(tier)
	key := cacheKey{tier: tier, temperature: temperature}
	if m, ok := g.cache[key]; ok {
		return m, nil
	}

	m, err := g.build(ctx, name, temperature)
	if err != nil {
		return nil, fmt.Errorf("%w: build %s model: %v", contract.ErrModelInvoke, tier, err)
	}
	g.cache[key] = m
	return m, nil
}

// throttle blocks until MinCallInterval has passed since the previous call.
// The gate mutex is held through the wait so concurrent callers queue.
func (g *Gateway) throttle(ctx context.Context) error {
	g.gateMu.Lock()
	defer g.gateMu.Unlock()

	wait := g.conf.MinCallInterval - time.Since(g.lastCall)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.lastCall = time.Now()
	return nil
}

func buildMessages(system string, history []*schema.Message) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	return append(msgs, history...)
}

// Complete runs a plain completion and returns the text content.
func (g *Gateway) Complete(ctx context.Context, tier contract.ModelTier, system string, history []*schema.Message) (string, error) {
	m, err := g.modelFor(ctx, tier)
	if err != nil {
		return "", err
	}
	if err := g.throttle(ctx); err != nil {
		return "", err
	}

	out, err := m.Generate(ctx, buildMessages(system, history))
	if err != nil {
		log.Error().Err(err).Str("tier", string(tier)).Msg("model completion failed")
		return "", fmt.Errorf("%w: %v", contract.ErrModelInvoke, err)
	}
	return out.Content, nil
}

// CompleteWithTools runs a tool-calling completion and returns the raw
// assistant message so callers can inspect tool calls.
func (g *Gateway) CompleteWithTools(ctx context.Context, tier contract.ModelTier, system string, history []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
	m, err := g.modelFor(ctx, tier)
	if err != nil {
		return nil, err
	}
	if len(tools) > 0 {
		m, err = m.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools: %v", contract.ErrModelInvoke, err)
		}
	}
	if err := g.throttle(ctx); err != nil {
		return nil, err
	}

	out, err := m.Generate(ctx, buildMessages(system, history))
	if err != nil {
		log.Error().Err(err).Str("tier", string(tier)).Msg("tool completion failed")
		return nil, fmt.Errorf("%w: %v", contract.ErrModelInvoke, err)
	}
	return out, nil
}
