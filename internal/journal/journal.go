// Package journal persists settled trades to sqlite and answers the
// aggregate queries behind the daily summary and the equity report.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"traderelay/internal/types"
)

// ClosedTrade is one settled trade row.
type ClosedTrade struct {
	ID              uint   `gorm:"primaryKey"`
	Ticket          int64  `gorm:"uniqueIndex"`
	OriginMessageID int64  `gorm:"index"`
	Symbol          string `gorm:"index"`
	Side            string
	Status          string
	EntryPrice      float64
	ClosePrice      float64
	OpenedVolume    float64
	Profit          float64
	Targets         datatypes.JSON
	OpenedAt        time.Time
	ClosedAt        time.Time `gorm:"index"`
}

// Store is the sqlite-backed journal.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&ClosedTrade{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordClosed journals a final trade. Re-recording the same ticket is a
// no-op so settlement can be retried safely.
func (s *Store) RecordClosed(ctx context.Context, t *types.Trade) error {
	targets, err := json.Marshal(t.Targets)
	if err != nil {
		return err
	}
	row := ClosedTrade{
		Ticket:          t.Ticket,
		OriginMessageID: t.OriginMessageID,
		Symbol:          t.Symbol,
		Side:            string(t.Side),
		Status:          string(t.Status),
		EntryPrice:      t.EntryPrice,
		ClosePrice:      t.ClosePrice,
		OpenedVolume:    t.OpenedVolume,
		Profit:          t.Profit,
		Targets:         datatypes.JSON(targets),
		OpenedAt:        t.OpenedAt,
		ClosedAt:        t.ClosedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "ticket"}}, DoNothing: true}).
		Create(&row).Error
}

// Range returns trades settled in [from, to), oldest first.
func (s *Store) Range(ctx context.Context, from, to time.Time) ([]ClosedTrade, error) {
	var rows []ClosedTrade
	err := s.db.WithContext(ctx).
		Where("closed_at >= ? AND closed_at < ?", from, to).
		Order("closed_at asc").
		Find(&rows).Error
	return rows, err
}

// Summary aggregates one reporting period.
type Summary struct {
	From   time.Time
	To     time.Time
	Trades int
	Wins   int
	Losses int
	Profit float64
}

// Summarize aggregates the trades settled in [from, to).
func (s *Store) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	rows, err := s.Range(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{From: from, To: to, Trades: len(rows)}
	for _, r := range rows {
		sum.Profit += r.Profit
		switch {
		case r.Profit > 0:
			sum.Wins++
		case r.Profit < 0:
			sum.Losses++
		}
	}
	return sum, nil
}

// String renders the summary for the operator channel.
func (s Summary) String() string {
	return fmt.Sprintf("Daily summary %s: %d trades, %d wins, %d losses, net %.2f",
		s.From.Format("2006-01-02"), s.Trades, s.Wins, s.Losses, s.Profit)
}
