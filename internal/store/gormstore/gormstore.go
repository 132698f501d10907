// Package gormstore is the relational Repository. Production runs it on
// Postgres; tests and single-node dev setups run it on SQLite.
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/store"
	"kasirinaja/backoffice/internal/xid"
)

type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	driver string
}

// Open connects with the given driver ("postgres" or "sqlite") and pings.
func Open(ctx context.Context, driver string, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("extracting sql.DB: %w", err)
	}
	if driver == "sqlite" {
		// SQLite serialises writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return &Store{db: db, sqlDB: sqlDB, driver: driver}, nil
}

func (s *Store) SQLDB() *sql.DB {
	return s.sqlDB
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func (s *Store) GetBranch(ctx context.Context, id string) (*domain.Branch, error) {
	var row branchRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}
	return &domain.Branch{ID: row.ID, Name: row.Name}, nil
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	var rows []branchRow
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	branches := make([]domain.Branch, 0, len(rows))
	for _, row := range rows {
		branches = append(branches, domain.Branch{ID: row.ID, Name: row.Name})
	}
	return branches, nil
}

// CreateBranch is used by seeding and tests; branches are otherwise managed
// outside this service.
func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) error {
	row := branchRow{ID: branch.ID, Name: branch.Name}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" || user.BranchID == "" {
		return store.ErrInvalidInput
	}
	row := userRow{
		ID:        user.ID,
		Username:  username,
		Name:      user.Name,
		Password:  user.Password,
		Role:      user.Role,
		BranchID:  user.BranchID,
		Active:    true,
		CreatedAt: user.CreatedAt,
	}
	if row.ID == "" {
		row.ID = xid.New("user")
	}
	if row.Role == "" {
		row.Role = domain.RoleCashier
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]domain.UserAccount, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("username = ?", username).Update("password", password)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	row := auditLogRow{
		ID:            entry.ID,
		BranchID:      entry.BranchID,
		ActorUsername: entry.ActorUsername,
		ActorRole:     entry.ActorRole,
		Action:        entry.Action,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		Detail:        entry.Detail,
		CreatedAt:     entry.CreatedAt.UTC(),
	}
	if row.ID == "" {
		row.ID = xid.New("audit")
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	query := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at DESC, id DESC")
	if branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []auditLogRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	logs := make([]domain.AuditLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.toDomain())
	}
	return logs, nil
}

func mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

// isUniqueViolation recognises both the Postgres SQLSTATE and SQLite's
// constraint message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
