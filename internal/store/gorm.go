package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dkeye/roomrelay/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type roomRecord struct {
	Code      string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	CreatedBy string `gorm:"size:64"`
}

func (roomRecord) TableName() string { return "rooms" }

type memberRecord struct {
	RoomCode string `gorm:"primaryKey;size:36"`
	Identity string `gorm:"primaryKey;size:36"`
	JoinedAt time.Time
}

func (memberRecord) TableName() string { return "room_members" }

type messageRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RoomCode  string `gorm:"index:idx_room_messages_room_id,priority:1;size:36"`
	Payload   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (messageRecord) TableName() string { return "room_messages" }

// Gorm is the SQL backend.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects and migrates the schema.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := NewGorm(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Migrate() error {
	if err := g.db.AutoMigrate(&roomRecord{}, &memberRecord{}, &messageRecord{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// insertRoom keeps the first record of a code.
func (g *Gorm) insertRoom(tx *gorm.DB, meta domain.RoomMeta) *gorm.DB {
	rec := roomRecord{Code: string(meta.Code), CreatedAt: meta.CreatedAt, CreatedBy: meta.CreatedBy}
	return tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&rec)
}

func (g *Gorm) SaveRoom(ctx context.Context, meta domain.RoomMeta) error {
	if err := g.insertRoom(g.db.WithContext(ctx), meta).Error; err != nil {
		return fmt.Errorf("save room %s: %w", meta.Code, err)
	}
	return nil
}

func (g *Gorm) Room(ctx context.Context, code domain.RoomCode) (domain.RoomMeta, error) {
	var rec roomRecord
	err := g.db.WithContext(ctx).Where("code = ?", string(code)).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RoomMeta{}, ErrNotFound
	}
	if err != nil {
		return domain.RoomMeta{}, fmt.Errorf("load room %s: %w", code, err)
	}
	return domain.RoomMeta{Code: domain.RoomCode(rec.Code), CreatedAt: rec.CreatedAt, CreatedBy: rec.CreatedBy}, nil
}

func (g *Gorm) AddMember(ctx context.Context, code domain.RoomCode, identity domain.Identity) error {
	rec := memberRecord{RoomCode: string(code), Identity: string(identity), JoinedAt: time.Now()}
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("add member %s/%s: %w", code, identity, err)
	}
	return nil
}

func (g *Gorm) RemoveMember(ctx context.Context, code domain.RoomCode, identity domain.Identity) error {
	err := g.db.WithContext(ctx).
		Where("room_code = ? AND identity = ?", string(code), string(identity)).
		Delete(&memberRecord{}).Error
	if err != nil {
		return fmt.Errorf("remove member %s/%s: %w", code, identity, err)
	}
	return nil
}

func (g *Gorm) Members(ctx context.Context, code domain.RoomCode) ([]domain.Identity, error) {
	var names []string
	err := g.db.WithContext(ctx).Model(&memberRecord{}).
		Where("room_code = ?", string(code)).
		Order("identity").
		Pluck("identity", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list members %s: %w", code, err)
	}
	out := make([]domain.Identity, len(names))
	for i, n := range names {
		out[i] = domain.Identity(n)
	}
	return out, nil
}

func (g *Gorm) AppendMessage(ctx context.Context, code domain.RoomCode, raw json.RawMessage) error {
	rec := messageRecord{RoomCode: string(code), Payload: string(raw)}
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append message %s: %w", code, err)
	}
	return nil
}

func (g *Gorm) recentMessages(tx *gorm.DB, code domain.RoomCode, limit int) *gorm.DB {
	return tx.Model(&messageRecord{}).
		Where("room_code = ?", string(code)).
		Order("id DESC").
		Limit(limit)
}

func (g *Gorm) Messages(ctx context.Context, code domain.RoomCode, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		return []json.RawMessage{}, nil
	}
	var recs []messageRecord
	if err := g.recentMessages(g.db.WithContext(ctx), code, limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load messages %s: %w", code, err)
	}
	slices.Reverse(recs)
	out := make([]json.RawMessage, len(recs))
	for i, r := range recs {
		out[i] = json.RawMessage(r.Payload)
	}
	return out, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
