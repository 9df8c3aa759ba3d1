package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"clinic-agent/internal/domain"
)

// clinicOps is the subset of *clinic.Service the offline commands use.
type clinicOps interface {
	ListSpecialties(ctx context.Context) ([]string, error)
	FindDoctors(ctx context.Context, specialty string) ([]domain.Doctor, error)
	GetAvailability(ctx context.Context, doctorName, dateISO string) ([]string, error)
	BookAppointment(ctx context.Context, req domain.BookingRequest) (domain.BookingResult, error)
}

// withClinic resolves the clinic service and runs fn with the command's output.
func withClinic(opts *rootOptions, fn func(ctx context.Context, out io.Writer, svc clinicOps) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		_, c, err := opts.load()
		if err != nil {
			return err
		}
		svc, err := c.Clinic()
		if err != nil {
			return err
		}
		return fn(context.Background(), cmd.OutOrStdout(), svc)
	}
}

func newSpecialtiesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "specialties",
		Short: "List the clinic's specialties",
		Args:  cobra.NoArgs,
		RunE: withClinic(opts, func(ctx context.Context, out io.Writer, svc clinicOps) error {
			return printSpecialties(ctx, out, svc)
		}),
	}
}

func newDoctorsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctors <specialty>",
		Short: "List doctors for a specialty",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		specialty := strings.Join(args, " ")
		return withClinic(opts, func(ctx context.Context, out io.Writer, svc clinicOps) error {
			return printDoctors(ctx, out, svc, specialty)
		})(c, args)
	}
	return cmd
}

func newAvailabilityCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability <doctor> <YYYY-MM-DD>",
		Short: "Show a doctor's free slots on a date",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withClinic(opts, func(ctx context.Context, out io.Writer, svc clinicOps) error {
			return printAvailability(ctx, out, svc, args[0], args[1])
		})(c, args)
	}
	return cmd
}

func newBookCommand(opts *rootOptions) *cobra.Command {
	var patient domain.Patient
	cmd := &cobra.Command{
		Use:   "book <doctor> <YYYY-MM-DD> <HH:MM>",
		Short: "Book a slot directly",
		Args:  cobra.ExactArgs(3),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		req := domain.BookingRequest{DoctorName: args[0], DateISO: args[1], Time24h: args[2], Patient: patient}
		return withClinic(opts, func(ctx context.Context, out io.Writer, svc clinicOps) error {
			return printBooking(ctx, out, svc, req)
		})(c, args)
	}
	cmd.Flags().StringVar(&patient.Name, "name", "", "Patient name")
	cmd.Flags().StringVar(&patient.Phone, "phone", "", "Patient phone")
	return cmd
}

func printSpecialties(ctx context.Context, out io.Writer, svc clinicOps) error {
	specialties, err := svc.ListSpecialties(ctx)
	if err != nil {
		return err
	}
	for _, s := range specialties {
		fmt.Fprintln(out, s)
	}
	return nil
}

func printDoctors(ctx context.Context, out io.Writer, svc clinicOps, specialty string) error {
	doctors, err := svc.FindDoctors(ctx, specialty)
	if err != nil {
		return err
	}
	if len(doctors) == 0 {
		fmt.Fprintf(out, "No doctors found for %q\n", specialty)
		return nil
	}
	for _, d := range doctors {
		fmt.Fprintf(out, "%s (%s)\n", d.Name, d.Specialty)
	}
	return nil
}

func printAvailability(ctx context.Context, out io.Writer, svc clinicOps, doctor, date string) error {
	slots, err := svc.GetAvailability(ctx, doctor, date)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Fprintf(out, "No free slots for %s on %s\n", doctor, date)
		return nil
	}
	fmt.Fprintln(out, strings.Join(slots, ", "))
	return nil
}

func printBooking(ctx context.Context, out io.Writer, svc clinicOps, req domain.BookingRequest) error {
	result, err := svc.BookAppointment(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
