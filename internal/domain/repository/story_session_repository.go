// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"z-story-flow-api/internal/domain/entity"
)

// StateStore 单个会话的字段存储
// 读取不存在的键返回 found=false，而不是默认值
type StateStore interface {
	Get(ctx context.Context, key entity.FieldKey) (entity.Field, bool, error)
	Set(ctx context.Context, key entity.FieldKey, field entity.Field) error
	Has(ctx context.Context, key entity.FieldKey) (bool, error)
	// Delete 删除单个字段，键不存在时不报错
	Delete(ctx context.Context, key entity.FieldKey) error
	// Clear 清空全部字段，用于整体重置
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) (entity.Snapshot, error)
}

// StorySessionRepository 会话仓储
type StorySessionRepository interface {
	Create(ctx context.Context) (*entity.StorySession, error)
	Get(ctx context.Context, id string) (*entity.StorySession, error)
	// Touch 刷新会话活跃时间
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// Store 返回会话的字段存储，不校验会话是否存在
	Store(id string) StateStore
	Count(ctx context.Context) (int64, error)
}

// SessionLocker 会话级单写者锁
type SessionLocker interface {
	// Lock 阻塞直到获得锁或 ctx 结束，返回释放函数
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// Sweeper 周期性清理过期会话，仅内存后端需要
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) int
}
