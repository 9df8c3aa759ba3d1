package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clinic-agent/internal/domain"
)

const (
	doctorsFile      = "doctors.csv"
	schedulesFile    = "schedules.csv"
	appointmentsFile = "appointments.csv"
)

var appointmentHeader = []string{
	"appointment_id",
	"doctor_name",
	"date_iso",
	"time_24h",
	"patient_name",
	"patient_phone",
	"created_at",
}

// CSVStore reads the doctor directory and schedules from flat files and
// appends appointments to appointments.csv. Every call re-reads the files.
type CSVStore struct {
	dir string
	mu  sync.Mutex
}

// NewCSVStore creates a store rooted at dir.
func NewCSVStore(dir string) (*CSVStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("repository: data directory must not be empty")
	}
	return &CSVStore{dir: dir}, nil
}

func (s *CSVStore) LoadDoctors(_ context.Context) ([]domain.Doctor, error) {
	rows, err := readCSV(filepath.Join(s.dir, doctorsFile), "doctor_name", "specialty")
	if err != nil {
		return nil, fmt.Errorf("repository: LoadDoctors: %w", err)
	}
	out := make([]domain.Doctor, 0, len(rows))
	for _, r := range rows {
		name := strings.TrimSpace(r["doctor_name"])
		if name == "" {
			continue
		}
		out = append(out, domain.Doctor{Name: name, Specialty: strings.TrimSpace(r["specialty"])})
	}
	return out, nil
}

func (s *CSVStore) LoadSchedules(_ context.Context) ([]domain.Schedule, error) {
	rows, err := readCSV(filepath.Join(s.dir, schedulesFile), "doctor_name", "working_days", "slots")
	if err != nil {
		return nil, fmt.Errorf("repository: LoadSchedules: %w", err)
	}
	out := make([]domain.Schedule, 0, len(rows))
	for i, r := range rows {
		days, err := parseWorkingDays(r["working_days"])
		if err != nil {
			return nil, fmt.Errorf("repository: LoadSchedules row %d: %w", i+2, err)
		}
		out = append(out, domain.Schedule{
			DoctorName:  strings.TrimSpace(r["doctor_name"]),
			WorkingDays: days,
			Slots:       parseSlots(r["slots"]),
		})
	}
	return out, nil
}

// LoadAppointments returns every stored appointment. A missing file means no
// appointments have been booked yet.
func (s *CSVStore) LoadAppointments(_ context.Context) ([]domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := readCSV(filepath.Join(s.dir, appointmentsFile), appointmentHeader...)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Appointment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: LoadAppointments: %w", err)
	}
	out := make([]domain.Appointment, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Appointment{
			ID:           r["appointment_id"],
			DoctorName:   r["doctor_name"],
			DateISO:      r["date_iso"],
			Time24h:      r["time_24h"],
			PatientName:  r["patient_name"],
			PatientPhone: r["patient_phone"],
			CreatedAt:    r["created_at"],
		})
	}
	return out, nil
}

// SaveAppointment appends one row, writing the header first when the file is new.
func (s *CSVStore) SaveAppointment(_ context.Context, appt domain.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, appointmentsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("repository: SaveAppointment open: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("repository: SaveAppointment stat: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(appointmentHeader); err != nil {
			return fmt.Errorf("repository: SaveAppointment header: %w", err)
		}
	}
	if err := w.Write([]string{
		appt.ID,
		appt.DoctorName,
		appt.DateISO,
		appt.Time24h,
		appt.PatientName,
		appt.PatientPhone,
		appt.CreatedAt,
	}); err != nil {
		return fmt.Errorf("repository: SaveAppointment write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("repository: SaveAppointment flush: %w", err)
	}
	return nil
}

// readCSV returns the rows of path keyed by header name. Every column in
// required must be present in the header.
func readCSV(path string, required ...string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", filepath.Base(path), col)
		}
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		row := make(map[string]string, len(index))
		for col, i := range index {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseWorkingDays accepts space or comma separated day names such as "Mon Tue".
func parseWorkingDays(raw string) ([]time.Weekday, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == ',' || r == '|' })
	days := make([]time.Weekday, 0, len(fields))
	for _, f := range fields {
		key := strings.ToLower(f)
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdays[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", f)
		}
		days = append(days, d)
	}
	return days, nil
}

func parseSlots(raw string) []string {
	parts := strings.Split(raw, "|")
	slots := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			slots = append(slots, p)
		}
	}
	return slots
}
