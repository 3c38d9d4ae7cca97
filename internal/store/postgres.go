// Package store persists directory lobby records in Postgres through gorm.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type lobbyRecord struct {
	ID            string                     `gorm:"primaryKey;size:64"`
	Code          string                     `gorm:"uniqueIndex;size:16"`
	Name          string                     `gorm:"size:128"`
	MaxPlayers    int
	Private       bool
	HostID        string                     `gorm:"size:64"`
	Players       []types.Player             `gorm:"serializer:json"`
	Data          map[string]types.Attribute `gorm:"serializer:json"`
	CreatedAt     time.Time
	LastHeartbeat time.Time
	UpdatedAt     time.Time
}

func (lobbyRecord) TableName() string { return "lobbies" }

func toRecord(l types.Lobby) lobbyRecord {
	c := l.Clone()
	return lobbyRecord{
		ID:            c.ID,
		Code:          c.Code,
		Name:          c.Name,
		MaxPlayers:    c.MaxPlayers,
		Private:       c.Private,
		HostID:        c.HostID,
		Players:       c.Players,
		Data:          c.Data,
		CreatedAt:     c.CreatedAt,
		LastHeartbeat: c.LastHeartbeat,
	}
}

func (r lobbyRecord) toLobby() types.Lobby {
	return types.Lobby{
		ID:            r.ID,
		Code:          r.Code,
		Name:          r.Name,
		MaxPlayers:    r.MaxPlayers,
		Private:       r.Private,
		HostID:        r.HostID,
		Players:       r.Players,
		Data:          r.Data,
		CreatedAt:     r.CreatedAt,
		LastHeartbeat: r.LastHeartbeat,
	}
}

type Postgres struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the lobbies table.
func Open(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db)
}

func New(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&lobbyRecord{}); err != nil {
		return nil, fmt.Errorf("migrate lobbies: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Save(ctx context.Context, l types.Lobby) error {
	rec := toRecord(l)
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("save lobby %s: %w", l.ID, err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&lobbyRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete lobby %s: %w", id, err)
	}
	return nil
}

func (s *Postgres) LoadAll(ctx context.Context) ([]types.Lobby, error) {
	var recs []lobbyRecord
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load lobbies: %w", err)
	}
	out := make([]types.Lobby, len(recs))
	for i, r := range recs {
		out[i] = r.toLobby()
	}
	return out, nil
}

func (s *Postgres) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
