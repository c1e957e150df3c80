package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the dispatch queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print queue statistics as JSON",
	RunE:  queueStats,
}

var queuePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending entries in dispatch order",
	RunE:  queuePending,
}

func init() {
	queueCmd.AddCommand(queueStatsCmd, queuePendingCmd)
	rootCmd.AddCommand(queueCmd)
}

func queueStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc)

	st, err := svc.Controller.Stats(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func queuePending(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc)

	entries, err := svc.Controller.Pending(ctx, 0)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("queue is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  request=%d  priority=%s  enqueued=%s\n",
			e.ID, e.RequestID, e.Priority, e.EnqueuedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
