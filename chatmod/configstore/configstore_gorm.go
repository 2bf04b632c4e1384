package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/warden-mod/warden/chatmod/policy"
)

// Durable store backed by sqlite or postgres via gorm. This is the default
// persistence for single-node deployments (the original service kept all of
// this in a local sqlite file).
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

type GroupPolicy struct {
	gorm.Model
	GroupID string `gorm:"uniqueIndex"`
	Enabled bool
	Policy  []byte
}

type GroupUserState struct {
	gorm.Model
	GroupID         string `gorm:"index:idx_group_user,unique"`
	UserID          string `gorm:"index:idx_group_user,unique"`
	ViolationCount  int
	EscalationLevel string
	LastViolation   time.Time
	LastAction      time.Time
}

type AuditEntry struct {
	ID                uint   `gorm:"primarykey"`
	EventID           string `gorm:"uniqueIndex"`
	GroupID           string `gorm:"index"`
	UserID            string
	Action            string
	ActionFailed      bool
	EscalationApplied bool
	Reason            string
	Signals           []byte
	CreatedAt         time.Time `gorm:"index"`
}

type GroupStat struct {
	ID      uint   `gorm:"primarykey"`
	GroupID string `gorm:"index:idx_group_stat,unique"`
	Name    string `gorm:"index:idx_group_stat,unique"`
	Count   int64
}

// Supports URI-style database config strings for both sqlite and postgresql:
// "sqlite://data/warden.sqlite" or "postgresql://user:pw@host:5432/warden".
func OpenDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	isSqlite := false
	openConns := maxConnections
	if strings.HasPrefix(dburl, "sqlite://") {
		sqliteSuffix := dburl[len("sqlite://"):]
		// if this isn't ":memory:", ensure the directory exists (eg, if db
		// file is being initialized)
		if !strings.Contains(sqliteSuffix, ":?") {
			os.MkdirAll(filepath.Dir(sqliteSuffix), os.ModePerm)
		}
		dial = sqlite.Open(sqliteSuffix)
		openConns = 1
		isSqlite = true
	} else if strings.HasPrefix(dburl, "postgresql://") || strings.HasPrefix(dburl, "postgres://") {
		// can pass entire URL, with prefix, to gorm driver
		dial = postgres.Open(dburl)
	} else {
		return nil, fmt.Errorf("unsupported or unrecognized database URL scheme: %s", dburl)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxIdleConns(80)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
	}
	return db, nil
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&GroupPolicy{}, &GroupUserState{}, &AuditEntry{}, &GroupStat{}); err != nil {
		return nil, fmt.Errorf("migrating config store schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetPolicy(ctx context.Context, group string) (*policy.Policy, error) {
	var row GroupPolicy
	err := s.db.WithContext(ctx).Where("group_id = ?", group).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return policy.Default(), nil
	} else if err != nil {
		return nil, err
	}
	var pol policy.Policy
	if err := json.Unmarshal(row.Policy, &pol); err != nil {
		return nil, fmt.Errorf("parsing stored policy for group %s: %w", group, err)
	}
	return &pol, nil
}

func (s *GormStore) PutPolicy(ctx context.Context, group string, pol *policy.Policy) error {
	raw, err := json.Marshal(pol)
	if err != nil {
		return err
	}
	row := GroupPolicy{
		GroupID: group,
		Enabled: pol.Enabled,
		Policy:  raw,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "policy", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) GetUserState(ctx context.Context, group, user string) (*UserState, error) {
	var row GroupUserState
	err := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", group, user).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewUserState(), nil
	} else if err != nil {
		return nil, err
	}
	return &UserState{
		ViolationCount:  row.ViolationCount,
		EscalationLevel: Level(row.EscalationLevel),
		LastViolation:   row.LastViolation,
		LastAction:      row.LastAction,
	}, nil
}

func (s *GormStore) PutUserState(ctx context.Context, group, user string, st *UserState) error {
	row := GroupUserState{
		GroupID:         group,
		UserID:          user,
		ViolationCount:  st.ViolationCount,
		EscalationLevel: string(st.EscalationLevel),
		LastViolation:   st.LastViolation,
		LastAction:      st.LastAction,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"violation_count", "escalation_level", "last_violation", "last_action", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	raw, err := json.Marshal(rec.Signals)
	if err != nil {
		return err
	}
	row := AuditEntry{
		EventID:           rec.EventID,
		GroupID:           rec.GroupID,
		UserID:            rec.UserID,
		Action:            rec.Action,
		ActionFailed:      rec.ActionFailed,
		EscalationApplied: rec.EscalationApplied,
		Reason:            rec.Reason,
		Signals:           raw,
		CreatedAt:         rec.CreatedAt,
	}
	// duplicate event ids are silently dropped
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

func (s *GormStore) HasAudit(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AuditEntry{}).Where("event_id = ?", eventID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) ListAudit(ctx context.Context, group string, since time.Time) ([]*AuditRecord, error) {
	var rows []AuditEntry
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND created_at >= ?", group, since).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*AuditRecord, 0, len(rows))
	for _, row := range rows {
		rec := &AuditRecord{
			EventID:           row.EventID,
			GroupID:           row.GroupID,
			UserID:            row.UserID,
			Action:            row.Action,
			ActionFailed:      row.ActionFailed,
			EscalationApplied: row.EscalationApplied,
			Reason:            row.Reason,
			CreatedAt:         row.CreatedAt,
		}
		if len(row.Signals) > 0 {
			if err := json.Unmarshal(row.Signals, &rec.Signals); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *GormStore) IncrementStat(ctx context.Context, group, name string, delta int64) error {
	row := GroupStat{
		GroupID: group,
		Name:    name,
		Count:   delta,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + ?", delta)}),
	}).Create(&row).Error
}

func (s *GormStore) GetStats(ctx context.Context, group string) (map[string]int64, error) {
	var rows []GroupStat
	if err := s.db.WithContext(ctx).Where("group_id = ?", group).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Count
	}
	return out, nil
}
