// Package agent implements the support agent's control loop: model calls,
// tool dispatch, loop prevention, and an iteration ceiling, wrapped in
// retry, rate limiting, and a circuit breaker.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultMaxIterations bounds the model-call/tool-dispatch cycle.
const DefaultMaxIterations = 50

// fallbackText is returned when the model produces neither text nor
// tool requests.
const fallbackText = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// state tracks where a run is in its model/tool cycle.
type state int

const (
	stateAwaitingModel state = iota
	stateDispatchingTools
	stateDone
)

func (s state) String() string {
	switch s {
	case stateAwaitingModel:
		return "awaiting_model"
	case stateDispatchingTools:
		return "dispatching_tools"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ModelCaller makes one model call with tool requests returned to the
// caller instead of auto-dispatched.
type ModelCaller interface {
	Generate(ctx context.Context, messages []*ai.Message, tools []ai.ToolRef) (*ai.ModelResponse, error)
}

// ToolDispatcher resolves and runs registered tools by name.
type ToolDispatcher interface {
	// Known reports whether a tool with this name is registered.
	Known(name string) bool
	// Dispatch runs the named tool. Calling Dispatch for an unknown name
	// is a programming error.
	Dispatch(ctx context.Context, name string, input any) (any, error)
}

// Config collects the loop's dependencies.
type Config struct {
	Caller        ModelCaller
	Dispatcher    ToolDispatcher
	Tools         []ai.ToolRef
	SystemPrompt  string
	MaxIterations int // <= 0 means DefaultMaxIterations
	Logger        *slog.Logger

	Retry       RetryConfig          // zero value uses defaults
	Breaker     CircuitBreakerConfig // zero value uses defaults
	RateLimiter *rate.Limiter        // nil disables proactive rate limiting
}

// Result is the outcome of one completed run.
type Result struct {
	Text       string        // final user-facing answer
	Messages   []*ai.Message // full conversation including this run's turns
	Iterations int           // model calls consumed
	LoopBroken bool          // loop prevention cut the run short
}

// Loop drives the conversation cycle until the model answers in plain
// text, loop prevention fires, or the iteration ceiling is hit.
//
// Loop is stateless across runs; per-run conversation state lives in the
// message slice the caller passes in and gets back.
type Loop struct {
	caller       ModelCaller
	dispatcher   ToolDispatcher
	tools        []ai.ToolRef
	systemPrompt string
	maxIter      int
	logger       *slog.Logger

	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
}

// New creates a Loop.
func New(cfg Config) (*Loop, error) {
	if cfg.Caller == nil {
		return nil, errors.New("model caller is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("tool dispatcher is required")
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		caller:       cfg.Caller,
		dispatcher:   cfg.Dispatcher,
		tools:        cfg.Tools,
		systemPrompt: cfg.SystemPrompt,
		maxIter:      maxIter,
		logger:       logger,
		retry:        retry,
		breaker:      NewCircuitBreaker(cfg.Breaker),
		limiter:      cfg.RateLimiter,
	}, nil
}

// Run processes one user input on top of the given conversation history
// and returns the final answer plus the extended conversation.
//
// Returns ErrResourceExhausted (wrapped) when the iteration ceiling is
// reached before the model settles on an answer.
func (l *Loop) Run(ctx context.Context, history []*ai.Message, input string) (*Result, error) {
	runID := uuid.NewString()
	logger := l.logger.With("run_id", runID)

	messages := make([]*ai.Message, 0, len(history)+2)
	if l.systemPrompt != "" && !hasSystemMessage(history) {
		messages = append(messages, ai.NewSystemMessage(ai.NewTextPart(l.systemPrompt)))
	}
	messages = append(messages, history...)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	st := stateAwaitingModel
	for iter := 1; iter <= l.maxIter; iter++ {
		logger.Debug("loop iteration", "iteration", iter, "state", st.String())

		resp, err := l.callModel(ctx, messages)
		if err != nil {
			return nil, err
		}
		prior := messages
		if resp.Message != nil {
			messages = append(messages, resp.Message)
		}

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			st = stateDone
			text := strings.TrimSpace(resp.Text())
			if text == "" {
				logger.Warn("model returned empty response with no tool requests")
				text = fallbackText
			}
			logger.Debug("run complete", "state", st.String(), "iterations", iter)
			return &Result{Text: text, Messages: messages, Iterations: iter}, nil
		}

		// A tool the conversation already has a result for signals the
		// model is circling. Stop dispatching and treat this response's
		// text as the final answer.
		if repeated := l.repeatedTool(prior, requests); repeated != "" {
			st = stateDone
			logger.Info("loop prevention triggered",
				"tool", repeated, "iteration", iter)
			text := strings.TrimSpace(resp.Text())
			if text == "" {
				text = fallbackText
			}
			return &Result{
				Text: text, Messages: messages,
				Iterations: iter, LoopBroken: true,
			}, nil
		}

		st = stateDispatchingTools
		parts := make([]*ai.Part, 0, len(requests))
		for _, req := range requests {
			parts = append(parts, l.dispatch(ctx, logger, req))
		}
		messages = append(messages, ai.NewMessage(ai.RoleTool, nil, parts...))
		st = stateAwaitingModel
	}

	logger.Warn("iteration ceiling reached", "max_iterations", l.maxIter)
	return nil, fmt.Errorf("%w after %d iterations", ErrResourceExhausted, l.maxIter)
}

// dispatch runs one tool request and wraps the outcome as a response part
// with the request's Ref copied over for correlation. Unknown names and
// execution failures become readable results so the loop keeps running.
func (l *Loop) dispatch(ctx context.Context, logger *slog.Logger, req *ai.ToolRequest) *ai.Part {
	var output any
	switch {
	case !l.dispatcher.Known(req.Name):
		logger.Warn("model requested unknown tool", "tool", req.Name)
		output = fmt.Sprintf("ERROR: tool %q is not available. Available tools are limited; use only the tools you were given.", req.Name)
	default:
		result, err := l.dispatcher.Dispatch(ctx, req.Name, req.Input)
		if err != nil {
			logger.Warn("tool dispatch failed", "tool", req.Name, "error", err)
			output = fmt.Sprintf("ERROR: tool %q failed: %v", req.Name, err)
		} else {
			output = result
		}
	}

	return ai.NewToolResponsePart(&ai.ToolResponse{
		Name:   req.Name,
		Ref:    req.Ref,
		Output: output,
	})
}

// repeatedTool returns the first currently proposed tool name that already
// has a result in prior, or "" when there is none. prior is the conversation
// before the model message carrying the current requests; system messages
// are skipped.
func (l *Loop) repeatedTool(prior []*ai.Message, requests []*ai.ToolRequest) string {
	seen := make(map[string]bool)
	for _, msg := range prior {
		if msg.Role == ai.RoleSystem {
			continue
		}
		for _, part := range msg.Content {
			if part.ToolResponse != nil {
				seen[part.ToolResponse.Name] = true
			}
		}
	}

	for _, req := range requests {
		if seen[req.Name] {
			return req.Name
		}
	}
	return ""
}

func hasSystemMessage(messages []*ai.Message) bool {
	for _, msg := range messages {
		if msg.Role == ai.RoleSystem {
			return true
		}
	}
	return false
}
