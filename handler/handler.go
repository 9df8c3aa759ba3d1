package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"clinic-agent/internal/domain"
	"clinic-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// ChatUseCase is the single operation exposed over HTTP and Lambda.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type Handler struct {
	uc ChatUseCase
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Reply     string                   `json:"reply"`
	SessionID string                   `json:"sessionId"`
	Outcome   string                   `json:"outcome"`
	State     domain.ConversationState `json:"state"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(uc ChatUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle is the API Gateway proxy entry point.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	status, payload := h.process(ctx, correlationID, []byte(req.Body))
	body, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}, nil
}

// process decodes a chat request body, runs the turn and returns the status
// code with the JSON payload to send back.
func (h *Handler) process(ctx context.Context, correlationID string, body []byte) (int, any) {
	var in chatRequest
	if err := json.Unmarshal(body, &in); err != nil {
		slog.Warn("invalid chat request body", "correlation_id", correlationID, "err", err)
		return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{SessionID: in.SessionID, Message: in.Message})
	if err != nil {
		status, resp := errorStatus(err)
		slog.Error("chat request failed",
			"correlation_id", correlationID,
			"session_id", in.SessionID,
			"status", status,
			"err", err,
		)
		return status, resp
	}

	slog.Info("chat request served",
		"correlation_id", correlationID,
		"session_id", out.SessionID,
		"outcome", out.Outcome,
	)
	return http.StatusOK, chatResponse{
		Reply:     out.Reply,
		SessionID: out.SessionID,
		Outcome:   string(out.Outcome),
		State:     out.State,
	}
}

func errorStatus(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	resp := errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, resp
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, resp
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
