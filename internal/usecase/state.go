package usecase

import (
	"sort"
	"strconv"
	"strings"

	"clinic-agent/internal/domain"
	"clinic-agent/internal/tools"
)

const (
	keyPatientName  = "patient_name"
	keyPatientAge   = "patient_age"
	keyPatientPhone = "patient_phone"
	keySpecialty    = "specialty"
	keyDoctorName   = "doctor_name"
	keyDateISO      = "date_iso"
	keyTime24h      = "time_24h"
)

// stateKeys is the rendering and merge order of ConversationState fields.
var stateKeys = []string{
	keyPatientName,
	keyPatientAge,
	keyPatientPhone,
	keySpecialty,
	keyDoctorName,
	keyDateISO,
	keyTime24h,
}

// stateUpdateResult is the update_state tool result.
type stateUpdateResult struct {
	Status  string   `json:"status"`
	Updated []string `json:"updated"`
	Ignored []string `json:"ignored,omitempty"`
}

// applyStateUpdate merges the present known keys of args into state. Null or
// blank values clear a field, absent keys are left alone, and unknown keys
// or values of the wrong type are reported as ignored.
func applyStateUpdate(state *domain.ConversationState, args tools.Arguments) stateUpdateResult {
	res := stateUpdateResult{Status: "ok", Updated: []string{}}
	known := make(map[string]struct{}, len(stateKeys))
	for _, key := range stateKeys {
		known[key] = struct{}{}
		if !args.Has(key) {
			continue
		}
		if applyField(state, key, args) {
			res.Updated = append(res.Updated, key)
		} else {
			res.Ignored = append(res.Ignored, key)
		}
	}

	var unknown []string
	for key := range args {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	res.Ignored = append(res.Ignored, unknown...)
	return res
}

func applyField(state *domain.ConversationState, key string, args tools.Arguments) bool {
	if key == keyPatientAge {
		if args.IsNull(key) {
			state.PatientAge = nil
			return true
		}
		if s, ok := args[key].(string); ok && strings.TrimSpace(s) == "" {
			state.PatientAge = nil
			return true
		}
		age, ok := args.Int(key)
		if !ok || age < 0 {
			return false
		}
		state.PatientAge = &age
		return true
	}

	field := textField(state, key)
	switch args[key].(type) {
	case map[string]any, []any:
		return false
	}
	*field = domain.Text(args.String(key))
	return true
}

func textField(state *domain.ConversationState, key string) **string {
	switch key {
	case keyPatientName:
		return &state.PatientName
	case keyPatientPhone:
		return &state.PatientPhone
	case keySpecialty:
		return &state.Specialty
	case keyDoctorName:
		return &state.DoctorName
	case keyDateISO:
		return &state.DateISO
	case keyTime24h:
		return &state.Time24h
	}
	return nil
}

// renderSnapshot formats the state block injected ahead of each user message.
func renderSnapshot(state domain.ConversationState) string {
	lines := []string{"CURRENT BOOKING STATE (authoritative):"}
	for _, key := range stateKeys {
		lines = append(lines, "- "+key+": "+fieldValue(state, key))
	}
	ready := "no"
	if state.IsReadyToBook() {
		ready = "yes"
	}
	lines = append(lines,
		"- ready_to_book: "+ready,
		"",
		"Use this state to resolve pronouns like he/him/that.",
		"If a field is missing, ask for it or call tools as needed.",
		"Use this only for reasoning. Never repeat it verbatim.",
	)
	return strings.Join(lines, "\n")
}

func fieldValue(state domain.ConversationState, key string) string {
	if key == keyPatientAge {
		if state.PatientAge == nil {
			return "unset"
		}
		return strconv.Itoa(*state.PatientAge)
	}
	p := *textField(&state, key)
	if p == nil {
		return "unset"
	}
	return *p
}
