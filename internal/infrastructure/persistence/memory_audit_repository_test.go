package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/kubeagent/core/internal/domain/entity"
)

func TestMemoryAuditRepository_AppendAndList(t *testing.T) {
	repo := NewMemoryAuditRepository()
	ctx := context.Background()

	rec1 := entity.NewAuditRecord("exec-1", "conv-1", "kubectl_get_pods", nil, "", entity.AuditSuccess, time.Now(), time.Time{}, "ok")
	rec2 := entity.NewAuditRecord("exec-2", "conv-1", "kubectl_delete_pod", nil, "operator", entity.AuditSuccess, time.Now(), time.Now(), "ok")

	if err := repo.Append(ctx, rec1); err != nil {
		t.Fatalf("append rec1: %v", err)
	}
	if err := repo.Append(ctx, rec2); err != nil {
		t.Fatalf("append rec2: %v", err)
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].ExecutionID != "exec-2" {
		t.Fatalf("expected most recent first, got %s", all[0].ExecutionID)
	}
}

func TestMemoryAuditRepository_FindByConversationID(t *testing.T) {
	repo := NewMemoryAuditRepository()
	ctx := context.Background()

	a := entity.NewAuditRecord("exec-1", "conv-a", "kubectl_get_pods", nil, "", entity.AuditSuccess, time.Now(), time.Time{}, "ok")
	b := entity.NewAuditRecord("exec-2", "conv-b", "kubectl_get_pods", nil, "", entity.AuditSuccess, time.Now(), time.Time{}, "ok")
	_ = repo.Append(ctx, a)
	_ = repo.Append(ctx, b)

	found, err := repo.FindByConversationID(ctx, "conv-a", 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 1 || found[0].ExecutionID != "exec-1" {
		t.Fatalf("expected only exec-1 for conv-a, got %+v", found)
	}
}

func TestMemoryAuditRepository_DeleteOlderThan(t *testing.T) {
	repo := NewMemoryAuditRepository()
	ctx := context.Background()

	old := entity.NewAuditRecord("exec-old", "conv-1", "kubectl_get_pods", nil, "", entity.AuditSuccess, time.Now().Add(-48*time.Hour), time.Time{}, "ok")
	old.CompletedAt = time.Now().Add(-48 * time.Hour)
	recent := entity.NewAuditRecord("exec-new", "conv-1", "kubectl_get_pods", nil, "", entity.AuditSuccess, time.Now(), time.Time{}, "ok")

	_ = repo.Append(ctx, old)
	_ = repo.Append(ctx, recent)

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour).Unix())
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %d", deleted)
	}

	remaining, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ExecutionID != "exec-new" {
		t.Fatalf("expected only exec-new to remain, got %+v", remaining)
	}
}
