package usecase

import (
	"context"
	"errors"
	"strings"

	"clinic-agent/internal/clinic"
	"clinic-agent/internal/domain"
)

// ---------------------------------------------------------------------------
// LLM fakes
// ---------------------------------------------------------------------------

type llmResponse struct {
	msg domain.ChatMessage
	err error
}

// mockLLM replays scripted responses and records every request.
type mockLLM struct {
	responses []llmResponse
	requests  []domain.CompletionRequest
}

func (m *mockLLM) Complete(_ context.Context, req domain.CompletionRequest) (domain.ChatMessage, error) {
	cp := req
	cp.Messages = append([]domain.ChatMessage(nil), req.Messages...)
	m.requests = append(m.requests, cp)
	if len(m.responses) == 0 {
		return domain.ChatMessage{}, errors.New("no llm response configured")
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r.msg, r.err
}

func (m *mockLLM) callCount() int {
	return len(m.requests)
}

func reply(text string) llmResponse {
	return llmResponse{msg: domain.AssistantMessage(text)}
}

func toolCalls(calls ...domain.ToolCall) llmResponse {
	return llmResponse{msg: domain.ChatMessage{Role: domain.RoleAssistant, ToolCalls: calls}}
}

func call(id, name, args string) domain.ToolCall {
	return domain.ToolCall{ID: id, Type: "function", Function: domain.FunctionCall{Name: name, Arguments: args}}
}

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return "upstream status" }
func (e *statusErr) HTTPStatusCode() int { return e.code }

// ---------------------------------------------------------------------------
// Clinic fake
// ---------------------------------------------------------------------------

type fakeClinic struct {
	doctors     []domain.Doctor
	slots       map[string][]string // key: doctor|date
	booked      []domain.BookingRequest
	storeErr    error
	calls       map[string]int
	lastTZ      string
	specialties []string
}

func newFakeClinic() *fakeClinic {
	return &fakeClinic{
		doctors: []domain.Doctor{
			{Name: "Dr X", Specialty: "Orthopedics"},
			{Name: "Dr Y", Specialty: "Orthopedics"},
		},
		slots: map[string][]string{
			"Dr X|2025-12-23": {"09:00", "10:00", "11:00"},
		},
		specialties: []string{"Orthopedics"},
		calls:       map[string]int{},
	}
}

func (f *fakeClinic) ListSpecialties(context.Context) ([]string, error) {
	f.calls["list_specialties"]++
	return f.specialties, f.storeErr
}

func (f *fakeClinic) FindDoctors(_ context.Context, specialty string) ([]domain.Doctor, error) {
	f.calls["find_doctors"]++
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	out := []domain.Doctor{}
	for _, d := range f.doctors {
		if strings.EqualFold(d.Specialty, specialty) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeClinic) DoctorExists(_ context.Context, name string) (bool, error) {
	f.calls["doctor_exists"]++
	if f.storeErr != nil {
		return false, f.storeErr
	}
	for _, d := range f.doctors {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClinic) GetAvailability(_ context.Context, doctor, date string) ([]string, error) {
	f.calls["get_availability"]++
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	if len(date) != len("2006-01-02") {
		return nil, clinic.ErrInvalidInput
	}
	return append([]string{}, f.slots[doctor+"|"+date]...), nil
}

func (f *fakeClinic) BookAppointment(_ context.Context, req domain.BookingRequest) (domain.BookingResult, error) {
	f.calls["book_appointment"]++
	if f.storeErr != nil {
		return domain.BookingResult{}, f.storeErr
	}
	key := req.DoctorName + "|" + req.DateISO
	for i, s := range f.slots[key] {
		if s == req.Time24h {
			f.slots[key] = append(f.slots[key][:i:i], f.slots[key][i+1:]...)
			f.booked = append(f.booked, req)
			return domain.BookingResult{Status: domain.BookingConfirmed, Appointment: &domain.Appointment{
				ID: "APT-1", DoctorName: req.DoctorName, DateISO: req.DateISO, Time24h: req.Time24h,
				PatientName: req.Patient.Name, PatientPhone: req.Patient.Phone,
			}}, nil
		}
	}
	return domain.BookingResult{Status: domain.BookingFailed, Reason: clinic.ReasonSlotNotAvailable}, nil
}

func (f *fakeClinic) CurrentDatetime(timezone string) (domain.Datetime, error) {
	f.calls["get_current_datetime"]++
	f.lastTZ = timezone
	return domain.Datetime{Timezone: "Asia/Kolkata", ISODatetime: "2025-12-22T09:00:00+05:30", DateISO: "2025-12-22", Weekday: "Monday"}, nil
}

// ---------------------------------------------------------------------------
// Session store fake
// ---------------------------------------------------------------------------

type fakeSessions struct {
	sessions map[string]domain.Session
	loadErr  error
	saveErr  error
	saves    int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]domain.Session{}}
}

func (f *fakeSessions) Load(_ context.Context, id string) (domain.Session, error) {
	if f.loadErr != nil {
		return domain.Session{}, f.loadErr
	}
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return domain.NewSession(id), nil
}

func (f *fakeSessions) Save(_ context.Context, s domain.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.sessions[s.ID] = s
	return nil
}
