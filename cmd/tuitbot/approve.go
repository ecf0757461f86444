package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/worldline-go/types"

	"github.com/aramirez087/tuitbot/internal/core"
)

var (
	flagApproveList     bool
	flagApproveID       string
	flagRejectID        string
	flagApproveAll      bool
	flagRejectionReason string
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Operate on the approval queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		a, err := newApp(cmd.Context(), flagConfigPath, false)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		switch {
		case flagApproveID != "":
			return transitionApproval(ctx, a.store, start, flagApproveID, core.ApprovalApproved, "")
		case flagRejectID != "":
			return transitionApproval(ctx, a.store, start, flagRejectID, core.ApprovalRejected, flagRejectionReason)
		case flagApproveAll:
			return approveAll(ctx, a.store, start)
		default:
			return listApprovals(ctx, a.store, start)
		}
	},
}

func init() {
	approveCmd.Flags().BoolVar(&flagApproveList, "list", false, "list pending approvals")
	approveCmd.Flags().StringVar(&flagApproveID, "approve", "", "approve the queue item with this id")
	approveCmd.Flags().StringVar(&flagRejectID, "reject", "", "reject the queue item with this id")
	approveCmd.Flags().BoolVar(&flagApproveAll, "approve-all", false, "approve every pending queue item")
	approveCmd.Flags().StringVar(&flagRejectionReason, "reason", "", "rejection reason (with --reject)")
}

func listApprovals(ctx context.Context, store core.Storer, start time.Time) error {
	items, err := store.ListApprovals(ctx, core.ApprovalPending)
	if err != nil {
		return emitError(start, core.Wrap(core.CodeDBError, "list pending approvals", err))
	}
	emit(start, items, func() {
		if len(items) == 0 {
			fmt.Println("no pending approvals")
			return
		}
		for _, it := range items {
			fmt.Printf("%s\t%s\t%s\t%s\n", it.ID, it.AccountID, it.ActionKind, it.CreatedAt.Format(time.RFC3339))
		}
	})
	return nil
}

func approveAll(ctx context.Context, store core.Storer, start time.Time) error {
	items, err := store.ListApprovals(ctx, core.ApprovalPending)
	if err != nil {
		return emitError(start, core.Wrap(core.CodeDBError, "list pending approvals", err))
	}
	for _, it := range items {
		it.Status = core.ApprovalApproved
		it.UpdatedAt = time.Now()
		if err := store.PutApproval(ctx, it); err != nil {
			return emitError(start, core.Wrap(core.CodeDBError, fmt.Sprintf("approve %q", it.ID), err))
		}
	}
	emit(start, map[string]int{"approved": len(items)}, func() {
		fmt.Printf("approved %d item(s)\n", len(items))
	})
	return nil
}

func transitionApproval(ctx context.Context, store core.Storer, start time.Time, id string, status core.ApprovalStatus, reason string) error {
	item, err := store.GetApproval(ctx, id)
	if err != nil {
		return emitError(start, core.Wrap(core.CodeNotFound, fmt.Sprintf("approval %q not found", id), err))
	}
	item.Status = status
	item.UpdatedAt = time.Now()
	if reason != "" {
		item.RejectionReason = types.NewNull(reason)
	}
	if err := store.PutApproval(ctx, item); err != nil {
		return emitError(start, core.Wrap(core.CodeDBError, fmt.Sprintf("persist approval %q", id), err))
	}
	emit(start, item, func() {
		fmt.Printf("%s -> %s\n", id, status)
	})
	return nil
}
