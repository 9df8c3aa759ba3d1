package domain

import (
	"strings"
	"time"
)

// ConversationState is the structured booking memory carried across turns.
// A nil field is unset; empty strings are never stored.
type ConversationState struct {
	PatientName  *string `json:"patient_name"`
	PatientAge   *int    `json:"patient_age"`
	PatientPhone *string `json:"patient_phone"`
	Specialty    *string `json:"specialty"`
	DoctorName   *string `json:"doctor_name"`
	DateISO      *string `json:"date_iso"`
	Time24h      *string `json:"time_24h"`
}

// IsReadyToBook reports whether every field needed for book_appointment is set.
func (s ConversationState) IsReadyToBook() bool {
	return s.PatientName != nil &&
		s.PatientPhone != nil &&
		s.DoctorName != nil &&
		s.DateISO != nil &&
		s.Time24h != nil
}

// Clone returns a deep copy so callers can mutate it without aliasing.
func (s ConversationState) Clone() ConversationState {
	return ConversationState{
		PatientName:  cloneString(s.PatientName),
		PatientAge:   cloneInt(s.PatientAge),
		PatientPhone: cloneString(s.PatientPhone),
		Specialty:    cloneString(s.Specialty),
		DoctorName:   cloneString(s.DoctorName),
		DateISO:      cloneString(s.DateISO),
		Time24h:      cloneString(s.Time24h),
	}
}

// Text returns a pointer to the trimmed value, or nil when it is blank.
func Text(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Session is everything persisted for one conversation between turns.
type Session struct {
	ID      string            `json:"id"`
	State   ConversationState `json:"state"`
	History []ChatMessage     `json:"history,omitempty"`
	// LastMessage and LastReply are the user message and assistant reply of
	// the most recent turn.
	LastMessage string    `json:"last_message,omitempty"`
	LastReply   string    `json:"last_reply,omitempty"`
	Turns       int       `json:"turns"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewSession returns an empty session for id.
func NewSession(id string) Session {
	return Session{ID: id}
}
