package eve

import (
	"context"
	"errors"
	"testing"
)

func TestServiceCreateAndGet(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Nova", "Analyst")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Create() returned empty id")
	}
	if created.Status != StatusActive {
		t.Errorf("Status = %q, want active", created.Status)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Nova" || got.Role != "Analyst" {
		t.Errorf("Get() = %+v, want Nova / Analyst", got)
	}
}

func TestServiceCreateEmptyName(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Create(context.Background(), "", "Analyst"); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Create(\"\") error = %v, want ErrEmptyName", err)
	}
}

func TestServiceListOrdered(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	for _, name := range []string{"Nova", "Echo", "Iris"} {
		if _, err := svc.Create(ctx, name, "PM"); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
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

func TestServiceSetStatus(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Nova", "Analyst")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.SetStatus(ctx, created.ID, StatusIdle); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	got, _ := svc.Get(ctx, created.ID)
	if got.Status != StatusIdle {
		t.Errorf("Status = %q, want idle", got.Status)
	}

	if err := svc.SetStatus(ctx, "missing", StatusIdle); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
	}
}
