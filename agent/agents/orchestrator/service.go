package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	nodex "github.com/tanpawarit/chative-commerce-agent/agent/nodes"
	statex "github.com/tanpawarit/chative-commerce-agent/agent/state"
	"github.com/tanpawarit/chative-commerce-agent/pkg/keylock"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

type Config struct {
	// RetryBudget counts extra model attempts; 0 selects the default of 2 and
	// a negative value disables retries.
	RetryBudget  int
	RetryDelay   time.Duration
	ModelTimeout time.Duration
	TurnTimeout  time.Duration
}

// Orchestrator runs one turn per inbound message. Turns for the same user
// are serialized; turns for different users run in parallel.
type Orchestrator struct {
	sessions  statex.Store
	responder nodex.Responder
	validator nodex.ToolValidator
	executor  nodex.ToolExecutor

	locks       *keylock.Locker
	policy      nodex.RetryPolicy
	turnTimeout time.Duration

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	sessions statex.Store,
	responder nodex.Responder,
	validator nodex.ToolValidator,
	executor nodex.ToolExecutor,
	cfg Config,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if responder == nil {
		return nil, errors.New("model responder is required")
	}
	if validator == nil {
		return nil, errors.New("tool validator is required")
	}
	if executor == nil {
		return nil, errors.New("tool executor is required")
	}

	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = 2 * time.Minute
	}

	o := &Orchestrator{
		sessions:  sessions,
		responder: responder,
		validator: validator,
		executor:  executor,
		locks:     keylock.New(),
		policy: nodex.RetryPolicy{
			Budget:  cfg.RetryBudget,
			Delay:   cfg.RetryDelay,
			Timeout: cfg.ModelTimeout,
		},
		turnTimeout: turnTimeout,
		now:         time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs a turn and returns the reply text. Apart from invalid
// input, every failure is converted to the fallback reply.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID string, text string) (string, error) {
	out, err := o.Handle(ctx, userID, text)
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

func (o *Orchestrator) Handle(ctx context.Context, userID string, text string) (nodex.GraphOutput, error) {
	st, err := nodex.ValidateRequest(nodex.GraphInput{UserID: userID, Text: text}, o.now)
	if err != nil {
		return nodex.GraphOutput{}, err
	}
	in := nodex.GraphInput{UserID: st.UserID, Text: st.Text}

	ctx = withTurnLogger(ctx, in.UserID)
	logger := zerolog.Ctx(ctx)

	unlock, err := o.locks.LockContext(ctx, in.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("wait for user turn lock")
		return fallbackOutput(), nil
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	started := o.now()
	out, err := o.graphRunner.Invoke(ctx, in)
	if err != nil {
		logger.Error().Err(err).Msg("turn failed")
		return fallbackOutput(), nil
	}

	if out.Path == nodex.PathFallback {
		logger.Error().Str("tool", out.Tool).Msg("turn answered with fallback")
	}
	logger.Info().
		Str("path", string(out.Path)).
		Str("tool", out.Tool).
		Dur("elapsed", o.now().Sub(started)).
		Msg("turn completed")
	return out, nil
}

func fallbackOutput() nodex.GraphOutput {
	return nodex.GraphOutput{Reply: nodex.FallbackText, Path: nodex.PathFallback}
}

func withTurnLogger(ctx context.Context, userID string) context.Context {
	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &log.Logger
	}
	logger := base.With().
		Str("turn_id", uuid.NewString()).
		Str("user_id", userID).
		Logger()
	return logger.WithContext(ctx)
}
