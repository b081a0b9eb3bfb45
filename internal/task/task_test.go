package task

import (
	"context"
	"errors"
	"testing"
)

func TestServiceAssignAndPending(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	first, err := svc.Assign(ctx, "eve-1", "draft the memo")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if first.ID == "" || first.Status != StatusPending {
		t.Errorf("Assign() = %+v, want pending task with id", first)
	}

	if _, err := svc.Assign(ctx, "eve-2", "review the memo"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if got := svc.Pending(ctx); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}

	if err := svc.Complete(ctx, first.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got := svc.Pending(ctx); got != 1 {
		t.Errorf("Pending() = %d after complete, want 1", got)
	}
}

func TestServiceAssignEmptyDescription(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Assign(context.Background(), "eve-1", ""); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("Assign(\"\") error = %v, want ErrEmptyDescription", err)
	}
}

func TestServiceCompleteIdempotent(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	created, err := svc.Assign(ctx, "eve-1", "one-off job")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if err := svc.Complete(ctx, created.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := svc.Complete(ctx, created.ID); err != nil {
		t.Errorf("second Complete() error = %v, want nil", err)
	}
	if err := svc.Complete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Complete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestServiceListOrdered(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	for _, d := range []string{"first", "second", "third"} {
		if _, err := svc.Assign(ctx, "eve-1", d); err != nil {
			t.Fatalf("Assign(%s) error = %v", d, err)
		}
	}

	all := svc.List(ctx)
	if len(all) != 3 {
		t.Fatalf("List() returned %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Errorf("List() not ordered by creation time at index %d", i)
		}
	}
}
