package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clinic-agent/internal/clinic"
	"clinic-agent/internal/domain"
	"clinic-agent/internal/metrics"
	"clinic-agent/internal/tools"
)

const (
	defaultMaxToolRounds = 10
	defaultTemperature   = 0.2
	toolChoiceAuto       = "auto"

	roundLimitMessage = "Sorry, I couldn't finish that just now. Could you tell me again what you'd like to do?"
)

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeTerminal       Outcome = "terminal"
	OutcomeShortCircuited Outcome = "short_circuited"
)

type LLMClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.ChatMessage, error)
}

// Clinic is the set of domain operations the tools dispatch to.
// *clinic.Service satisfies it.
type Clinic interface {
	ListSpecialties(ctx context.Context) ([]string, error)
	FindDoctors(ctx context.Context, specialty string) ([]domain.Doctor, error)
	DoctorExists(ctx context.Context, name string) (bool, error)
	GetAvailability(ctx context.Context, doctorName, dateISO string) ([]string, error)
	BookAppointment(ctx context.Context, req domain.BookingRequest) (domain.BookingResult, error)
	CurrentDatetime(timezone string) (domain.Datetime, error)
}

type OrchestratorConfig struct {
	ClinicName    string
	Model         string
	Temperature   *float64
	MaxToolRounds int
}

type OrchestratorOption func(*Orchestrator)

func WithMetrics(m *metrics.TurnMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithTracer(t trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// Orchestrator runs one user turn: it alternates completion requests and tool
// dispatch until the model answers in text or a guard ends the turn.
type Orchestrator struct {
	llm         LLMClient
	clinic      Clinic
	guards      guards
	tools       []domain.ToolDefinition
	model       string
	temperature float64
	maxRounds   int

	metrics *metrics.TurnMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// TurnResult is the outcome of RunTurn. Transcript holds the input messages
// followed by every assistant and tool message produced during the turn.
type TurnResult struct {
	Reply      string
	Outcome    Outcome
	Transcript []domain.ChatMessage
	Rounds     int
	ToolCalls  int
}

func NewOrchestrator(llm LLMClient, c Clinic, cfg OrchestratorConfig, opts ...OrchestratorOption) (*Orchestrator, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if c == nil {
		return nil, errors.New("usecase: clinic must not be nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if strings.TrimSpace(cfg.ClinicName) == "" {
		return nil, errors.New("usecase: clinic name must not be empty")
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	temperature := defaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	o := &Orchestrator{
		llm:         llm,
		clinic:      c,
		guards:      newGuards(c, cfg.ClinicName),
		tools:       tools.Definitions(),
		model:       cfg.Model,
		temperature: temperature,
		maxRounds:   cfg.MaxToolRounds,
		tracer:      otel.Tracer("clinic-agent/usecase"),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RunTurn drives the tool-calling loop over transcript. update_state calls
// mutate state in place; on error the caller should discard those changes.
func (o *Orchestrator) RunTurn(ctx context.Context, transcript []domain.ChatMessage, state *domain.ConversationState) (TurnResult, error) {
	ctx, span := o.tracer.Start(ctx, "chat.turn")
	defer span.End()

	if state == nil {
		state = &domain.ConversationState{}
	}
	res := TurnResult{Transcript: append([]domain.ChatMessage(nil), transcript...)}

	finish := func(outcome Outcome, reply string) (TurnResult, error) {
		res.Outcome = outcome
		res.Reply = reply
		span.SetAttributes(
			attribute.String("turn.outcome", string(outcome)),
			attribute.Int("turn.rounds", res.Rounds),
			attribute.Int("turn.tool_calls", res.ToolCalls),
		)
		o.metrics.ObserveTurn(string(outcome))
		return res, nil
	}
	fail := func(err *Error) (TurnResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(err.Code))
		o.metrics.ObserveTurn("error")
		return res, err
	}

	for res.Rounds < o.maxRounds {
		res.Rounds++

		msg, err := o.complete(ctx, res.Transcript)
		if err != nil {
			return fail(completionError(err))
		}
		res.Transcript = append(res.Transcript, msg)

		if len(msg.ToolCalls) == 0 {
			return finish(OutcomeTerminal, msg.Content)
		}

		for _, call := range msg.ToolCalls {
			res.ToolCalls++
			verdict, content, err := o.dispatch(ctx, call, state)
			if err != nil {
				return fail(newError(ErrorInternal, "tool_execution_error", err))
			}
			if verdict.Halted() {
				o.metrics.ObserveShortCircuit(verdict.Guard)
				o.logger.Info("turn short-circuited", "guard", verdict.Guard, "tool", call.Function.Name)
				return finish(OutcomeShortCircuited, verdict.Message)
			}
			res.Transcript = append(res.Transcript, domain.ToolResultMessage(call.ID, call.Function.Name, content))
		}
	}

	o.logger.Warn("tool round limit reached", "rounds", res.Rounds, "tool_calls", res.ToolCalls)
	o.metrics.ObserveShortCircuit("round_limit")
	return finish(OutcomeShortCircuited, roundLimitMessage)
}

func (o *Orchestrator) complete(ctx context.Context, transcript []domain.ChatMessage) (domain.ChatMessage, error) {
	temperature := o.temperature
	started := time.Now()
	msg, err := o.llm.Complete(ctx, domain.CompletionRequest{
		Model:       o.model,
		Messages:    transcript,
		Temperature: &temperature,
		Tools:       o.tools,
		ToolChoice:  toolChoiceAuto,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.ObserveCompletion(status, time.Since(started).Seconds())
	return msg, err
}

// dispatch runs one tool call between its guards and returns the JSON content
// of the tool message. Argument problems become {"error": ...} results;
// only data-store failures are returned as errors.
func (o *Orchestrator) dispatch(ctx context.Context, call domain.ToolCall, state *domain.ConversationState) (GuardVerdict, string, error) {
	name := call.Function.Name
	ctx, span := o.tracer.Start(ctx, "chat.tool", trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	args := tools.ParseArguments(call.Function.Arguments)

	verdict, err := o.guards.beforeCall(ctx, name, args)
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveToolCall(name, "error")
		return GuardVerdict{}, "", err
	}
	if verdict.Halted() {
		o.metrics.ObserveToolCall(name, "rejected")
		return verdict, "", nil
	}

	result, err := o.execute(ctx, name, args, state)
	status := "ok"
	switch {
	case errors.Is(err, clinic.ErrInvalidInput):
		status = "invalid"
		result = toolError{Error: err.Error()}
	case err != nil:
		span.RecordError(err)
		o.metrics.ObserveToolCall(name, "error")
		return GuardVerdict{}, "", fmt.Errorf("usecase: %s: %w", name, err)
	}
	o.metrics.ObserveToolCall(name, status)

	if verdict := o.guards.afterCall(name, result); verdict.Halted() {
		return verdict, "", nil
	}

	content, err := json.Marshal(result)
	if err != nil {
		return GuardVerdict{}, "", fmt.Errorf("usecase: encode %s result: %w", name, err)
	}
	o.logger.Debug("tool executed", "tool", name, "status", status)
	return proceed(), string(content), nil
}

type toolError struct {
	Error string `json:"error"`
}

func (o *Orchestrator) execute(ctx context.Context, name string, args tools.Arguments, state *domain.ConversationState) (any, error) {
	switch name {
	case tools.FindDoctors:
		doctors, err := o.clinic.FindDoctors(ctx, args.String("specialty"))
		if err != nil {
			return nil, err
		}
		return doctors, nil
	case tools.GetAvailability:
		slots, err := o.clinic.GetAvailability(ctx, args.String("doctor_name"), args.String("date_iso"))
		if err != nil {
			return nil, err
		}
		return slots, nil
	case tools.BookAppointment:
		patient := args.Object("patient")
		result, err := o.clinic.BookAppointment(ctx, domain.BookingRequest{
			DoctorName: args.String("doctor_name"),
			DateISO:    args.String("date_iso"),
			Time24h:    args.String("time_24h"),
			Patient: domain.Patient{
				Name:  patient.String("name"),
				Phone: patient.String("phone"),
			},
		})
		if err != nil {
			return nil, err
		}
		o.metrics.ObserveBooking(result.Status)
		return result, nil
	case tools.ListSpecialties:
		specialties, err := o.clinic.ListSpecialties(ctx)
		if err != nil {
			return nil, err
		}
		return specialties, nil
	case tools.GetCurrentDatetime:
		now, err := o.clinic.CurrentDatetime(args.String("timezone"))
		if err != nil {
			return nil, err
		}
		return now, nil
	case tools.UpdateState:
		return applyStateUpdate(state, args), nil
	default:
		return toolError{Error: "unknown tool: " + name}, nil
	}
}
