// Package tools declares the functions the model may call and decodes the
// argument strings it sends back. Execution lives with the orchestrator.
package tools

import "clinic-agent/internal/domain"

const (
	FindDoctors        = "find_doctors"
	GetAvailability    = "get_availability"
	BookAppointment    = "book_appointment"
	ListSpecialties    = "list_specialties"
	GetCurrentDatetime = "get_current_datetime"
	UpdateState        = "update_state"
)

// Names lists every declared tool in declaration order.
func Names() []string {
	return []string{
		FindDoctors,
		GetAvailability,
		BookAppointment,
		ListSpecialties,
		GetCurrentDatetime,
		UpdateState,
	}
}

// Definitions returns the tool declarations sent with every completion
// request. The order is stable across calls.
func Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		function(FindDoctors,
			"Find doctors at the clinic for a medical specialty. Use this before checking availability.",
			object(map[string]any{
				"specialty": str("Medical specialty, e.g. Orthopedics or Cardiology."),
			}, "specialty"),
		),
		function(GetAvailability,
			"Get free appointment slots for a doctor on a date. doctor_name must be a name returned by find_doctors, never a specialty.",
			object(map[string]any{
				"doctor_name": str("Exact doctor name as returned by find_doctors."),
				"date_iso":    str("Date in YYYY-MM-DD format."),
			}, "doctor_name", "date_iso"),
		),
		function(BookAppointment,
			"Book an appointment slot for a patient. Only call once the patient has confirmed the doctor, date, time, name and phone.",
			object(map[string]any{
				"doctor_name": str("Exact doctor name as returned by find_doctors."),
				"date_iso":    str("Date in YYYY-MM-DD format."),
				"time_24h":    str("Slot start time in HH:MM 24-hour format."),
				"patient": object(map[string]any{
					"name":  str("Patient full name."),
					"phone": str("Patient phone number."),
				}, "name", "phone"),
			}, "doctor_name", "date_iso", "time_24h", "patient"),
		),
		function(ListSpecialties,
			"List every medical specialty available at the clinic.",
			object(map[string]any{}),
		),
		function(GetCurrentDatetime,
			"Get the current date, time and weekday. Use it to resolve relative dates like today or next Monday.",
			object(map[string]any{
				"timezone": str("IANA timezone name. Defaults to the clinic timezone."),
			}),
		),
		function(UpdateState,
			"Record booking details learned from the conversation. Send only the fields that changed; send null to clear a field.",
			object(map[string]any{
				"patient_name":  nullable("string", "Patient full name."),
				"patient_age":   nullable("integer", "Patient age in years."),
				"patient_phone": nullable("string", "Patient phone number."),
				"specialty":     nullable("string", "Requested medical specialty."),
				"doctor_name":   nullable("string", "Chosen doctor name."),
				"date_iso":      nullable("string", "Chosen date in YYYY-MM-DD format."),
				"time_24h":      nullable("string", "Chosen time in HH:MM 24-hour format."),
			}),
		),
	}
}

func function(name, description string, params map[string]any) domain.ToolDefinition {
	return domain.ToolDefinition{
		Type: "function",
		Function: domain.FunctionSchema{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func nullable(typ, description string) map[string]any {
	return map[string]any{"type": []string{typ, "null"}, "description": description}
}
