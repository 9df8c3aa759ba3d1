package clinic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clinic-agent/internal/domain"
)

type fakeStore struct {
	doctors      []domain.Doctor
	schedules    []domain.Schedule
	appointments []domain.Appointment
	loadErr      error
	saveErr      error
	saves        int
}

func (f *fakeStore) LoadDoctors(context.Context) ([]domain.Doctor, error) {
	return f.doctors, f.loadErr
}

func (f *fakeStore) LoadSchedules(context.Context) ([]domain.Schedule, error) {
	return f.schedules, f.loadErr
}

func (f *fakeStore) LoadAppointments(context.Context) ([]domain.Appointment, error) {
	return append([]domain.Appointment(nil), f.appointments...), f.loadErr
}

func (f *fakeStore) SaveAppointment(_ context.Context, a domain.Appointment) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.appointments = append(f.appointments, a)
	return nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		doctors: []domain.Doctor{
			{Name: "Dr X", Specialty: "Orthopedics"},
			{Name: "Dr Y", Specialty: "orthopedics"},
			{Name: "Dr A", Specialty: "Cardiology"},
			{Name: "Dr B", Specialty: "Orthopedics"},
		},
		schedules: []domain.Schedule{
			{DoctorName: "Dr X", WorkingDays: []time.Weekday{time.Monday, time.Tuesday}, Slots: []string{"09:00", "10:00", "11:00"}},
			{DoctorName: "Dr A", WorkingDays: []time.Weekday{time.Wednesday}, Slots: []string{"14:00", "15:00"}},
		},
	}
}

// 2025-12-23 is a Tuesday.
var fixedNow = time.Date(2025, 12, 23, 4, 30, 15, 500, time.UTC)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, "Asia/Kolkata", WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return svc
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewService_ValidatesDependencies(t *testing.T) {
	_, err := NewService(nil, "")
	require.Error(t, err)

	_, err = NewService(newFakeStore(), "Mars/Olympus")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Directory lookups
// ---------------------------------------------------------------------------

func TestListSpecialties_DistinctAndSorted(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	got, err := svc.ListSpecialties(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Cardiology", "Orthopedics", "orthopedics"}, got)
}

func TestFindDoctors_CaseInsensitive(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	got, err := svc.FindDoctors(context.Background(), "  ORTHOPEDICS ")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "Dr X", got[0].Name)
	require.Equal(t, "Dr B", got[2].Name)
}

func TestFindDoctors_BlankAndUnknownAreEmpty(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	got, err := svc.FindDoctors(context.Background(), " ")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	got, err = svc.FindDoctors(context.Background(), "Dermatology")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDoctorExists(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	ok, err := svc.DoctorExists(context.Background(), " dr x ")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.DoctorExists(context.Background(), "Orthopedics")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLookups_PropagateStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("disk gone")
	svc := newTestService(t, store)

	_, err := svc.ListSpecialties(context.Background())
	require.Error(t, err)
	_, err = svc.GetAvailability(context.Background(), "Dr X", "2025-12-23")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrInvalidInput))
}

// ---------------------------------------------------------------------------
// Availability
// ---------------------------------------------------------------------------

func TestGetAvailability_WorkingDay(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	got, err := svc.GetAvailability(context.Background(), "Dr X", "2025-12-23")
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "10:00", "11:00"}, got)
}

func TestGetAvailability_EmptyCases(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	cases := []struct {
		name   string
		doctor string
		date   string
	}{
		{name: "unknown doctor", doctor: "Dr Nobody", date: "2025-12-23"},
		{name: "specialty instead of doctor", doctor: "Orthopedics", date: "2025-12-23"},
		{name: "non working day", doctor: "Dr X", date: "2025-12-24"},
		{name: "doctor without schedule", doctor: "Dr B", date: "2025-12-23"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.GetAvailability(ctx, tc.doctor, tc.date)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Empty(t, got)
		})
	}
}

func TestGetAvailability_InvalidDate(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	_, err := svc.GetAvailability(context.Background(), "Dr X", "23/12/2025")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetAvailability_ExcludesBookedAndIsStable(t *testing.T) {
	store := newFakeStore()
	store.appointments = []domain.Appointment{
		{DoctorName: "Dr X", DateISO: "2025-12-23", Time24h: "10:00"},
		{DoctorName: "Dr X", DateISO: "2025-12-22", Time24h: "09:00"},
		{DoctorName: "Dr A", DateISO: "2025-12-23", Time24h: "09:00"},
	}
	svc := newTestService(t, store)

	first, err := svc.GetAvailability(context.Background(), "dr x", "2025-12-23")
	require.NoError(t, err)
	second, err := svc.GetAvailability(context.Background(), "dr x", "2025-12-23")
	require.NoError(t, err)

	require.Equal(t, []string{"09:00", "11:00"}, first)
	require.Equal(t, first, second)
}

// ---------------------------------------------------------------------------
// Booking
// ---------------------------------------------------------------------------

func TestBookAppointment_ConfirmsAndPersists(t *testing.T) {
	origID := newAppointmentID
	newAppointmentID = func() string { return "APT-test" }
	t.Cleanup(func() { newAppointmentID = origID })

	store := newFakeStore()
	svc := newTestService(t, store)

	res, err := svc.BookAppointment(context.Background(), domain.BookingRequest{
		DoctorName: "dr x",
		DateISO:    "2025-12-23",
		Time24h:    "10:00",
		Patient:    domain.Patient{Name: " Asha ", Phone: "9999"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.BookingConfirmed, res.Status)
	require.NotNil(t, res.Appointment)
	require.Equal(t, domain.Appointment{
		ID:           "APT-test",
		DoctorName:   "Dr X",
		DateISO:      "2025-12-23",
		Time24h:      "10:00",
		PatientName:  "Asha",
		PatientPhone: "9999",
		CreatedAt:    "2025-12-23T10:00:15+05:30",
	}, *res.Appointment)
	require.Equal(t, 1, store.saves)

	slots, err := svc.GetAvailability(context.Background(), "Dr X", "2025-12-23")
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "11:00"}, slots)
}

func TestBookAppointment_DoubleBookFails(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	req := domain.BookingRequest{
		DoctorName: "Dr X",
		DateISO:    "2025-12-23",
		Time24h:    "09:00",
		Patient:    domain.Patient{Name: "Asha", Phone: "9999"},
	}

	first, err := svc.BookAppointment(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.BookingConfirmed, first.Status)

	second, err := svc.BookAppointment(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.BookingFailed, second.Status)
	require.Equal(t, ReasonSlotNotAvailable, second.Reason)
	require.Nil(t, second.Appointment)
	require.Equal(t, 1, store.saves)
}

func TestBookAppointment_RejectsUnofferedSlotAndMissingPatient(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	res, err := svc.BookAppointment(context.Background(), domain.BookingRequest{
		DoctorName: "Dr X", DateISO: "2025-12-23", Time24h: "13:00",
		Patient: domain.Patient{Name: "Asha", Phone: "9999"},
	})
	require.NoError(t, err)
	require.Equal(t, ReasonSlotNotAvailable, res.Reason)

	res, err = svc.BookAppointment(context.Background(), domain.BookingRequest{
		DoctorName: "Dr X", DateISO: "2025-12-23", Time24h: "09:00",
		Patient: domain.Patient{Name: "Asha"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.BookingFailed, res.Status)
	require.Equal(t, ReasonMissingPatient, res.Reason)
	require.Zero(t, store.saves)
}

func TestBookAppointment_SaveError(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("read-only")
	svc := newTestService(t, store)

	_, err := svc.BookAppointment(context.Background(), domain.BookingRequest{
		DoctorName: "Dr X", DateISO: "2025-12-23", Time24h: "09:00",
		Patient: domain.Patient{Name: "Asha", Phone: "9999"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "read-only")
}

// ---------------------------------------------------------------------------
// Current datetime
// ---------------------------------------------------------------------------

func TestCurrentDatetime_DefaultZone(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	got, err := svc.CurrentDatetime("")
	require.NoError(t, err)
	require.Equal(t, domain.Datetime{
		Timezone:    "Asia/Kolkata",
		ISODatetime: "2025-12-23T10:00:15+05:30",
		DateISO:     "2025-12-23",
		Weekday:     "Tuesday",
	}, got)
}

func TestCurrentDatetime_ExplicitAndUnknownZone(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	got, err := svc.CurrentDatetime("UTC")
	require.NoError(t, err)
	require.Equal(t, "2025-12-23T04:30:15Z", got.ISODatetime)

	_, err = svc.CurrentDatetime("Nowhere/Special")
	require.ErrorIs(t, err, ErrInvalidInput)
}
