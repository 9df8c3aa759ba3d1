package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"clinic-agent/internal/usecase"
)

// ---------------------------------------------------------------------------
// REPL
// ---------------------------------------------------------------------------

type scriptedChat struct {
	replies []string
	err     error
	inputs  []usecase.ChatInput
}

func (s *scriptedChat) Chat(_ context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return usecase.ChatOutput{}, s.err
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return usecase.ChatOutput{SessionID: in.SessionID, Reply: r, Outcome: usecase.OutcomeTerminal}, nil
}

func TestRunREPL_ConversationAndExit(t *testing.T) {
	chat := &scriptedChat{replies: []string{"Which specialty?", "Dr X is available."}}
	var out bytes.Buffer

	err := runREPL(context.Background(), strings.NewReader("hi\n\northopedics\nQUIT\nnever sent\n"), &out, "Super Clinic", "sess-1", chat)
	require.NoError(t, err)

	require.Len(t, chat.inputs, 2)
	require.Equal(t, usecase.ChatInput{SessionID: "sess-1", Message: "hi"}, chat.inputs[0])
	require.Equal(t, "orthopedics", chat.inputs[1].Message)

	got := out.String()
	require.True(t, strings.HasPrefix(got, "Super Clinic: Hello and welcome! How can I help you? (type 'exit' to quit)\n"))
	require.Contains(t, got, "Assistant: Which specialty?\n")
	require.Contains(t, got, "Assistant: Dr X is available.\n")
	require.True(t, strings.HasSuffix(got, "Assistant: Thank you for contacting Super Clinic. Have a good day!\n"))
}

func TestRunREPL_EOFSaysGoodbye(t *testing.T) {
	var out bytes.Buffer
	err := runREPL(context.Background(), strings.NewReader(""), &out, "Super Clinic", "s", &scriptedChat{})
	require.NoError(t, err)
	require.Contains(t, out.String(), "Have a good day!")
}

func TestRunREPL_UpstreamFailureEndsLoop(t *testing.T) {
	upstream := &usecase.Error{Code: usecase.ErrorUpstream, Reason: "llm_error", Err: errors.New("502")}
	chat := &scriptedChat{err: upstream}
	var out bytes.Buffer

	err := runREPL(context.Background(), strings.NewReader("hi\nstill there?\n"), &out, "Super Clinic", "s", chat)
	require.ErrorIs(t, err, upstream)
	require.Len(t, chat.inputs, 1)
	require.Contains(t, out.String(), "Assistant: "+unreachableReply)
}

func TestRunREPL_InvalidInputContinues(t *testing.T) {
	chat := &scriptedChat{err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "message_too_long"}}
	var out bytes.Buffer

	err := runREPL(context.Background(), strings.NewReader("a very long message\nexit\n"), &out, "Super Clinic", "s", chat)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Could you rephrase it?")
	require.Contains(t, out.String(), "Have a good day!")
}

// ---------------------------------------------------------------------------
// Domain commands
// ---------------------------------------------------------------------------

func setupClinic(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"CLINIC_CONFIG", "CLINIC_DATA_DIR", "CLINIC_NAME", "SESSION_BACKEND", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("doctors.csv", "doctor_name,specialty\nDr X,Orthopedics\nDr Y,Cardiology\n")
	write("schedules.csv", "doctor_name,working_days,slots\nDr X,Mon Tue,09:00|10:00\n")

	cfgPath := filepath.Join(dir, "clinic.yaml")
	write("clinic.yaml", "data_dir: "+dir+"\nlog_level: error\n")
	return cfgPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommands_Specialties(t *testing.T) {
	cfgPath := setupClinic(t)

	out, err := runCommand(t, "specialties", "--config", cfgPath)
	require.NoError(t, err)
	require.Equal(t, "Cardiology\nOrthopedics\n", out)
}

func TestCommands_Doctors(t *testing.T) {
	cfgPath := setupClinic(t)

	out, err := runCommand(t, "doctors", "orthopedics", "--config", cfgPath)
	require.NoError(t, err)
	require.Equal(t, "Dr X (Orthopedics)\n", out)

	out, err = runCommand(t, "doctors", "Dermatology", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "No doctors found")
}

func TestCommands_BookThenAvailability(t *testing.T) {
	cfgPath := setupClinic(t)

	// 2030-01-07 is a Monday.
	out, err := runCommand(t, "availability", "dr x", "2030-01-07", "--config", cfgPath)
	require.NoError(t, err)
	require.Equal(t, "09:00, 10:00\n", out)

	out, err = runCommand(t, "book", "Dr X", "2030-01-07", "09:00", "--name", "Asha", "--phone", "98450", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, `"status": "confirmed"`)
	require.Contains(t, out, `"appointment_id": "APT-`)

	out, err = runCommand(t, "availability", "Dr X", "2030-01-07", "--config", cfgPath)
	require.NoError(t, err)
	require.Equal(t, "10:00\n", out)

	out, err = runCommand(t, "book", "Dr X", "2030-01-07", "09:00", "--name", "Ravi", "--phone", "1", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, `"reason": "slot_not_available"`)
}

func TestCommands_ArgumentErrors(t *testing.T) {
	cfgPath := setupClinic(t)

	_, err := runCommand(t, "availability", "Dr X", "--config", cfgPath)
	require.Error(t, err)

	_, err = runCommand(t, "availability", "Dr X", "next monday", "--config", cfgPath)
	require.Error(t, err)
}
