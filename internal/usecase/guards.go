package usecase

import (
	"context"
	"fmt"

	"clinic-agent/internal/domain"
	"clinic-agent/internal/tools"
)

const (
	guardUnknownDoctor = "unknown_doctor"
	guardNoDoctors     = "no_doctors"
)

// GuardVerdict is the outcome of a guard check: either continue the batch or
// end the turn with Message as the reply.
type GuardVerdict struct {
	halt    bool
	Guard   string
	Message string
}

func proceed() GuardVerdict {
	return GuardVerdict{}
}

func shortCircuit(guard, message string) GuardVerdict {
	return GuardVerdict{halt: true, Guard: guard, Message: message}
}

// Halted reports whether the turn must end now.
func (v GuardVerdict) Halted() bool {
	return v.halt
}

// guards holds the pre- and post-execution checks run around each tool call.
type guards struct {
	clinic           Clinic
	noDoctorsMessage string
}

func newGuards(c Clinic, clinicName string) guards {
	return guards{
		clinic:           c,
		noDoctorsMessage: noDoctorsMessage(clinicName),
	}
}

func noDoctorsMessage(clinicName string) string {
	return fmt.Sprintf("Sorry, we do not have any doctors with that specialty at %s. Is there anything else I can help you with?", clinicName)
}

// beforeCall rejects get_availability for names that are not doctors, which
// is how the model usually passes a specialty where a doctor belongs.
func (g guards) beforeCall(ctx context.Context, name string, args tools.Arguments) (GuardVerdict, error) {
	if name != tools.GetAvailability {
		return proceed(), nil
	}
	exists, err := g.clinic.DoctorExists(ctx, args.String("doctor_name"))
	if err != nil {
		return GuardVerdict{}, err
	}
	if !exists {
		return shortCircuit(guardUnknownDoctor, g.noDoctorsMessage), nil
	}
	return proceed(), nil
}

// afterCall ends the turn when find_doctors comes back empty.
func (g guards) afterCall(name string, result any) GuardVerdict {
	if name != tools.FindDoctors {
		return proceed()
	}
	if doctors, ok := result.([]domain.Doctor); ok && len(doctors) == 0 {
		return shortCircuit(guardNoDoctors, g.noDoctorsMessage)
	}
	return proceed()
}
