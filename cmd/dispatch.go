package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GenuineDickies/pat-sub001/infra/logger"
)

var (
	dispatchRequestID int64
	dispatchDriverID  int64
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run dispatch operations against the queue",
}

var dispatchNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Claim and dispatch the highest-priority pending request",
	RunE:  dispatchNext,
}

var dispatchManualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Assign an operator-chosen driver to a request",
	RunE:  dispatchManual,
}

var dispatchEmergencyCmd = &cobra.Command{
	Use:   "emergency",
	Short: "Escalate a request to emergency priority and dispatch immediately",
	RunE:  dispatchEmergency,
}

func init() {
	dispatchManualCmd.Flags().Int64Var(&dispatchRequestID, "request", 0, "service request id")
	dispatchManualCmd.Flags().Int64Var(&dispatchDriverID, "driver", 0, "driver id")
	dispatchEmergencyCmd.Flags().Int64Var(&dispatchRequestID, "request", 0, "service request id")
	dispatchCmd.AddCommand(dispatchNextCmd, dispatchManualCmd, dispatchEmergencyCmd)
	rootCmd.AddCommand(dispatchCmd)
}

func dispatchNext(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc)

	out, err := svc.Controller.AutoDispatchNext(ctx)
	if err != nil {
		return err
	}
	if out == nil {
		fmt.Println("queue is empty")
		return nil
	}
	if out.Dispatched {
		fmt.Printf("request %d dispatched to driver %d (score %.1f)\n",
			out.Entry.RequestID, out.Candidate.Driver.ID, out.Candidate.Breakdown.Total)
		return nil
	}
	fmt.Printf("request %d failed: %s\n", out.Entry.RequestID, out.Reason)
	return nil
}

func dispatchManual(cmd *cobra.Command, args []string) error {
	if dispatchRequestID == 0 || dispatchDriverID == 0 {
		return fmt.Errorf("--request and --driver are required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc)

	if err := svc.Controller.ManualDispatch(ctx, dispatchRequestID, dispatchDriverID); err != nil {
		return err
	}
	fmt.Printf("request %d dispatched to driver %d\n", dispatchRequestID, dispatchDriverID)
	return nil
}

func dispatchEmergency(cmd *cobra.Command, args []string) error {
	if dispatchRequestID == 0 {
		return fmt.Errorf("--request is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc)

	out, err := svc.Controller.EmergencyDispatch(ctx, dispatchRequestID)
	if err != nil {
		return err
	}
	switch {
	case out.Dispatched:
		fmt.Printf("emergency request %d dispatched to driver %d\n",
			out.Entry.RequestID, out.Candidate.Driver.ID)
	case out.Queued:
		fmt.Printf("no candidate available, request %d queued at emergency priority\n", out.Entry.RequestID)
	default:
		fmt.Printf("emergency request %d failed: %s\n", out.Entry.RequestID, out.Reason)
	}
	return nil
}

func closeService(svc interface{ Close() error }) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
}
