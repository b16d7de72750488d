// Package repository 提供数据访问层
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/kinmu/internal/database"
)

// SolveRecord 一次排班求解的归档记录
type SolveRecord struct {
	ID            uuid.UUID            `json:"id"`
	Status        string               `json:"status"`
	Objective     float64              `json:"objective"`
	People        int                  `json:"people"`
	Days          int                  `json:"days"`
	ShortageCount int                  `json:"shortage_count"`
	Schedule      map[string][]*string `json:"schedule"`
	DurationMS    int64                `json:"duration_ms"`
	CreatedAt     time.Time            `json:"created_at"`
}

// HistoryRepository 求解历史仓储
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository 创建求解历史仓储
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// EnsureSchema 建表（幂等）
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS solve_history (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			objective DOUBLE PRECISION NOT NULL,
			people INTEGER NOT NULL,
			days INTEGER NOT NULL,
			shortage_count INTEGER NOT NULL,
			schedule JSONB NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("创建求解历史表失败: %w", err)
	}
	return nil
}

// Record 写入一条求解记录
func (r *HistoryRepository) Record(ctx context.Context, rec *SolveRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	scheduleJSON, err := json.Marshal(rec.Schedule)
	if err != nil {
		return fmt.Errorf("序列化排班表失败: %w", err)
	}

	query := `
		INSERT INTO solve_history (
			id, status, objective, people, days, shortage_count,
			schedule, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.Status, rec.Objective, rec.People, rec.Days, rec.ShortageCount,
		scheduleJSON, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("写入求解记录失败: %w", err)
	}
	return nil
}

// Recent 返回最近的求解记录
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*SolveRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, status, objective, people, days, shortage_count,
			schedule, duration_ms, created_at
		FROM solve_history
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("查询求解记录失败: %w", err)
	}
	defer rows.Close()

	var records []*SolveRecord
	for rows.Next() {
		rec := &SolveRecord{}
		var scheduleJSON []byte
		if err := rows.Scan(
			&rec.ID, &rec.Status, &rec.Objective, &rec.People, &rec.Days, &rec.ShortageCount,
			&scheduleJSON, &rec.DurationMS, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("读取求解记录失败: %w", err)
		}
		if err := json.Unmarshal(scheduleJSON, &rec.Schedule); err != nil {
			return nil, fmt.Errorf("解析排班表失败: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
