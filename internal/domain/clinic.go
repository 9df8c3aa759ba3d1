package domain

import "time"

type Doctor struct {
	Name      string `json:"doctor_name"`
	Specialty string `json:"specialty"`
}

// Schedule lists the weekdays a doctor works and the slot start times offered
// on each of them, in display order.
type Schedule struct {
	DoctorName  string
	WorkingDays []time.Weekday
	Slots       []string
}

// WorksOn reports whether the schedule includes the weekday of day.
func (s Schedule) WorksOn(day time.Weekday) bool {
	for _, d := range s.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID           string `json:"appointment_id"`
	DoctorName   string `json:"doctor_name"`
	DateISO      string `json:"date_iso"`
	Time24h      string `json:"time_24h"`
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`
	CreatedAt    string `json:"created_at"`
}

type Patient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type BookingRequest struct {
	DoctorName string
	DateISO    string
	Time24h    string
	Patient    Patient
}

const (
	BookingConfirmed = "confirmed"
	BookingFailed    = "failed"
)

// BookingResult is returned to the model verbatim as the book_appointment result.
type BookingResult struct {
	Status      string       `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	Appointment *Appointment `json:"appointment,omitempty"`
}

// Datetime is the get_current_datetime result.
type Datetime struct {
	Timezone    string `json:"timezone"`
	ISODatetime string `json:"iso_datetime"`
	DateISO     string `json:"date_iso"`
	Weekday     string `json:"weekday"`
}
