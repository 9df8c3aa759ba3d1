package usecase

import (
	"fmt"
	"strings"

	"clinic-agent/internal/domain"
)

// HistoryMode selects how prior turns are carried into the next request.
type HistoryMode string

const (
	// HistorySnapshot rebuilds the transcript every turn from the prompt, the
	// state snapshot and the previous assistant reply.
	HistorySnapshot HistoryMode = "snapshot"
	// HistoryFull replays the persisted transcript of earlier turns.
	HistoryFull HistoryMode = "full"
)

// ParseHistoryMode maps a config value to a HistoryMode.
func ParseHistoryMode(v string) (HistoryMode, error) {
	switch HistoryMode(strings.ToLower(strings.TrimSpace(v))) {
	case "", HistorySnapshot:
		return HistorySnapshot, nil
	case HistoryFull:
		return HistoryFull, nil
	}
	return "", fmt.Errorf("usecase: unknown history mode %q", v)
}

// DefaultSystemPrompt is the booking assistant's instructions for clinicName.
func DefaultSystemPrompt(clinicName string) string {
	return strings.Join([]string{
		"Role:",
		fmt.Sprintf("You are the appointment booking assistant for %s.", clinicName),
		"",
		"Task:",
		"Help the patient find a doctor, pick an open slot and book it.",
		"",
		"Tool Rules:",
		"- Call update_state whenever the patient shares or changes their name, age, phone, specialty, doctor, date or time.",
		"- Call find_doctors with the specialty before suggesting any doctor.",
		"- Call get_availability only with a doctor name returned by find_doctors, never with a specialty.",
		"- Call get_current_datetime to resolve words like today, tomorrow or next Monday into YYYY-MM-DD.",
		"- Call book_appointment only after the patient confirms the doctor, date, time, name and phone.",
		"",
		"Behavior Rules:",
		"- Only offer specialties, doctors and slots that tools returned. Never invent them.",
		"- Ask for one missing detail at a time.",
		"- Keep replies short and friendly.",
		"- After booking, confirm the appointment id, doctor, date and time.",
	}, "\n")
}

func specialtiesMessage(clinicName string, specialties []string) string {
	return fmt.Sprintf("Available specialties in %s (from DB): %s", clinicName, strings.Join(specialties, ", "))
}

type promptContext struct {
	systemPrompt string
	clinicName   string
	specialties  []string
}

// buildTranscript assembles the messages sent for a new user turn.
func buildTranscript(mode HistoryMode, pc promptContext, sess domain.Session, userMessage string) []domain.ChatMessage {
	snapshot := domain.SystemMessage(renderSnapshot(sess.State))
	specialties := domain.SystemMessage(specialtiesMessage(pc.clinicName, pc.specialties))

	messages := []domain.ChatMessage{domain.SystemMessage(pc.systemPrompt)}
	switch mode {
	case HistoryFull:
		messages = append(messages, specialties)
		messages = append(messages, sess.History...)
		messages = append(messages, snapshot)
	default:
		messages = append(messages, snapshot, specialties)
		if reply := strings.TrimSpace(sess.LastReply); reply != "" {
			messages = append(messages, domain.AssistantMessage(reply))
		}
	}
	return append(messages, domain.UserMessage(userMessage))
}

// trimHistory keeps at most limit messages, cutting only at a user message so
// tool calls stay paired with their results.
func trimHistory(history []domain.ChatMessage, limit int) []domain.ChatMessage {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	start := len(history) - limit
	for start < len(history) && history[start].Role != domain.RoleUser {
		start++
	}
	return append([]domain.ChatMessage(nil), history[start:]...)
}
