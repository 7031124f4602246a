package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	"github.com/kubeagent/core/internal/infrastructure/persistence/models"
	domainErrors "github.com/kubeagent/core/pkg/errors"
	"gorm.io/gorm"
)

// GormAuditRepository is the durable, append-only AuditRecord store (§4.5).
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a GORM-backed audit repository.
func NewGormAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Append(ctx context.Context, record entity.AuditRecord) error {
	model, err := toAuditModel(record)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to append audit record", err)
	}
	return nil
}

func (r *GormAuditRepository) FindByConversationID(ctx context.Context, conversationID string, limit int) ([]entity.AuditRecord, error) {
	var rows []models.AuditModel
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("completed_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list audit records", err)
	}
	return toAuditEntities(rows)
}

func (r *GormAuditRepository) List(ctx context.Context, limit int) ([]entity.AuditRecord, error) {
	var rows []models.AuditModel
	q := r.db.WithContext(ctx).Order("completed_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list audit records", err)
	}
	return toAuditEntities(rows)
}

func (r *GormAuditRepository) DeleteOlderThan(ctx context.Context, unixSeconds int64) (int64, error) {
	cutoff := time.Unix(unixSeconds, 0)
	result := r.db.WithContext(ctx).Where("completed_at < ?", cutoff).Delete(&models.AuditModel{})
	if result.Error != nil {
		return 0, domainErrors.NewInternalErrorWithCause("failed to sweep audit records", result.Error)
	}
	return result.RowsAffected, nil
}

func toAuditModel(a entity.AuditRecord) (*models.AuditModel, error) {
	paramsJSON, err := json.Marshal(a.Params)
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to marshal params", err)
	}
	return &models.AuditModel{
		ExecutionID:    a.ExecutionID,
		ConversationID: a.ConversationID,
		Tool:           a.Tool,
		Params:         string(paramsJSON),
		Approver:       a.Approver,
		Status:         string(a.Status),
		RequestedAt:    a.RequestedAt,
		DecidedAt:      a.DecidedAt,
		CompletedAt:    a.CompletedAt,
		ResultSize:     a.ResultSize,
		ResultPreview:  a.ResultPreview,
	}, nil
}

func toAuditEntities(rows []models.AuditModel) ([]entity.AuditRecord, error) {
	out := make([]entity.AuditRecord, 0, len(rows))
	for _, m := range rows {
		var params map[string]interface{}
		if m.Params != "" {
			if err := json.Unmarshal([]byte(m.Params), &params); err != nil {
				params = make(map[string]interface{})
			}
		}
		out = append(out, entity.AuditRecord{
			ExecutionID:    m.ExecutionID,
			ConversationID: m.ConversationID,
			Tool:           m.Tool,
			Params:         params,
			Approver:       m.Approver,
			Status:         entity.AuditStatus(m.Status),
			RequestedAt:    m.RequestedAt,
			DecidedAt:      m.DecidedAt,
			CompletedAt:    m.CompletedAt,
			ResultSize:     m.ResultSize,
			ResultPreview:  m.ResultPreview,
		})
	}
	return out, nil
}
