package clinic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"clinic-agent/internal/domain"
)

const (
	DefaultTimezone = "Asia/Kolkata"
	dateLayout      = "2006-01-02"

	ReasonSlotNotAvailable = "slot_not_available"
	ReasonMissingPatient   = "missing_patient_details"
)

// ErrInvalidInput marks argument problems the model can correct, as opposed
// to data-store failures.
var ErrInvalidInput = errors.New("clinic: invalid input")

// Store is the data access layer behind the domain operations.
type Store interface {
	LoadDoctors(ctx context.Context) ([]domain.Doctor, error)
	LoadSchedules(ctx context.Context) ([]domain.Schedule, error)
	LoadAppointments(ctx context.Context) ([]domain.Appointment, error)
	SaveAppointment(ctx context.Context, appt domain.Appointment) error
}

// Service implements the clinic lookups and booking on top of a Store.
type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time

	// bookMu serializes check-then-append so one process never double-books.
	bookMu sync.Mutex
}

type Option func(*Service)

// WithClock overrides the time source used for created_at and the current datetime.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service whose timestamps are rendered in timezone.
func NewService(store Store, timezone string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("clinic: store must not be nil")
	}
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("clinic: load timezone %q: %w", timezone, err)
	}
	s := &Service{store: store, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListSpecialties returns the distinct specialties in ordinal order.
func (s *Service) ListSpecialties(ctx context.Context) ([]string, error) {
	doctors, err := s.store.LoadDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("clinic: list specialties: %w", err)
	}
	seen := make(map[string]struct{}, len(doctors))
	out := make([]string, 0, len(doctors))
	for _, d := range doctors {
		sp := strings.TrimSpace(d.Specialty)
		if sp == "" {
			continue
		}
		if _, ok := seen[sp]; ok {
			continue
		}
		seen[sp] = struct{}{}
		out = append(out, sp)
	}
	sort.Strings(out)
	return out, nil
}

// FindDoctors returns doctors whose specialty matches case-insensitively.
// A blank specialty yields an empty list.
func (s *Service) FindDoctors(ctx context.Context, specialty string) ([]domain.Doctor, error) {
	specialty = strings.TrimSpace(specialty)
	out := []domain.Doctor{}
	if specialty == "" {
		return out, nil
	}
	doctors, err := s.store.LoadDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("clinic: find doctors: %w", err)
	}
	for _, d := range doctors {
		if strings.EqualFold(strings.TrimSpace(d.Specialty), specialty) {
			out = append(out, d)
		}
	}
	return out, nil
}

// DoctorExists reports whether name matches a known doctor, ignoring case and
// surrounding whitespace.
func (s *Service) DoctorExists(ctx context.Context, name string) (bool, error) {
	doctors, err := s.store.LoadDoctors(ctx)
	if err != nil {
		return false, fmt.Errorf("clinic: doctor exists: %w", err)
	}
	_, ok := matchDoctor(doctors, name)
	return ok, nil
}

// GetAvailability returns the free slots for a doctor on dateISO, in schedule
// order. Unknown doctors and non-working days yield an empty list.
func (s *Service) GetAvailability(ctx context.Context, doctorName, dateISO string) ([]string, error) {
	_, slots, err := s.availability(ctx, doctorName, dateISO)
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// BookAppointment re-checks availability against the store and appends a new
// appointment when the slot is still free.
func (s *Service) BookAppointment(ctx context.Context, req domain.BookingRequest) (domain.BookingResult, error) {
	patientName := strings.TrimSpace(req.Patient.Name)
	patientPhone := strings.TrimSpace(req.Patient.Phone)
	if patientName == "" || patientPhone == "" {
		return domain.BookingResult{Status: domain.BookingFailed, Reason: ReasonMissingPatient}, nil
	}

	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	doctor, slots, err := s.availability(ctx, req.DoctorName, req.DateISO)
	if err != nil {
		return domain.BookingResult{}, err
	}
	slot := strings.TrimSpace(req.Time24h)
	if !contains(slots, slot) {
		return domain.BookingResult{Status: domain.BookingFailed, Reason: ReasonSlotNotAvailable}, nil
	}

	appt := domain.Appointment{
		ID:           newAppointmentID(),
		DoctorName:   doctor,
		DateISO:      strings.TrimSpace(req.DateISO),
		Time24h:      slot,
		PatientName:  patientName,
		PatientPhone: patientPhone,
		CreatedAt:    s.now().In(s.loc).Truncate(time.Second).Format(time.RFC3339),
	}
	if err := s.store.SaveAppointment(ctx, appt); err != nil {
		return domain.BookingResult{}, fmt.Errorf("clinic: save appointment: %w", err)
	}
	return domain.BookingResult{Status: domain.BookingConfirmed, Appointment: &appt}, nil
}

// CurrentDatetime reports the current time in timezone, or in the clinic zone
// when timezone is blank.
func (s *Service) CurrentDatetime(timezone string) (domain.Datetime, error) {
	loc := s.loc
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return domain.Datetime{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, tz)
		}
		loc = l
	}
	now := s.now().In(loc)
	return domain.Datetime{
		Timezone:    loc.String(),
		ISODatetime: now.Truncate(time.Second).Format(time.RFC3339),
		DateISO:     now.Format(dateLayout),
		Weekday:     now.Weekday().String(),
	}, nil
}

// availability resolves the doctor to its stored spelling and computes the
// free slots for the date.
func (s *Service) availability(ctx context.Context, doctorName, dateISO string) (string, []string, error) {
	day, err := time.Parse(dateLayout, strings.TrimSpace(dateISO))
	if err != nil {
		return "", nil, fmt.Errorf("%w: date_iso %q must be YYYY-MM-DD", ErrInvalidInput, dateISO)
	}

	doctors, err := s.store.LoadDoctors(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("clinic: load doctors: %w", err)
	}
	doctor, ok := matchDoctor(doctors, doctorName)
	if !ok {
		return "", []string{}, nil
	}

	schedules, err := s.store.LoadSchedules(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("clinic: load schedules: %w", err)
	}
	var schedule *domain.Schedule
	for i := range schedules {
		if strings.EqualFold(strings.TrimSpace(schedules[i].DoctorName), doctor.Name) {
			schedule = &schedules[i]
			break
		}
	}
	if schedule == nil || !schedule.WorksOn(day.Weekday()) {
		return doctor.Name, []string{}, nil
	}

	appts, err := s.store.LoadAppointments(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("clinic: load appointments: %w", err)
	}
	date := day.Format(dateLayout)
	booked := make(map[string]struct{})
	for _, a := range appts {
		if strings.EqualFold(strings.TrimSpace(a.DoctorName), doctor.Name) && a.DateISO == date {
			booked[a.Time24h] = struct{}{}
		}
	}

	free := make([]string, 0, len(schedule.Slots))
	for _, slot := range schedule.Slots {
		if _, taken := booked[slot]; !taken {
			free = append(free, slot)
		}
	}
	return doctor.Name, free, nil
}

func matchDoctor(doctors []domain.Doctor, name string) (domain.Doctor, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Doctor{}, false
	}
	for _, d := range doctors {
		if strings.EqualFold(strings.TrimSpace(d.Name), name) {
			d.Name = strings.TrimSpace(d.Name)
			return d, true
		}
	}
	return domain.Doctor{}, false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var newAppointmentID = func() string {
	return "APT-" + uuid.NewString()
}
