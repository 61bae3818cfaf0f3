package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// PostgresUserDirectory implements store.UserDirectory over the users and
// user_capabilities tables.
type PostgresUserDirectory struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserDirectory creates a new PostgresUserDirectory.
// If logger is nil, a default logger will be used.
func NewPostgresUserDirectory(db store.DBTX, logger *slog.Logger) *PostgresUserDirectory {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserDirectory{
		db:     db,
		logger: logger.With(slog.String("component", "user_directory")),
	}
}

var _ store.UserDirectory = (*PostgresUserDirectory)(nil)

// WithTx returns a new PostgresUserDirectory bound to tx.
func (s *PostgresUserDirectory) WithTx(tx *sql.Tx) *PostgresUserDirectory {
	return &PostgresUserDirectory{db: tx, logger: s.logger}
}

const userColumns = `
	u.id, u.company_id, u.name, u.role, u.department, u.is_active,
	COALESCE((
		SELECT json_agg(json_build_object('name', c.name, 'level', c.level) ORDER BY c.name)
		FROM user_capabilities c
		WHERE c.user_id = u.id
	), '[]'::json)`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user domain.User
		role string
		caps []byte
	)
	if err := row.Scan(&user.ID, &user.CompanyID, &user.Name, &role, &user.Department, &user.IsActive, &caps); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	if err := json.Unmarshal(caps, &user.Capabilities); err != nil {
		return nil, fmt.Errorf("failed to decode user capabilities: %w", err)
	}
	return &user, nil
}

// GetUser implements store.UserDirectory.GetUser
func (s *PostgresUserDirectory) GetUser(ctx context.Context, companyID, userID uuid.UUID) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1 AND u.company_id = $2`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user not found", slog.String("user_id", userID.String()))
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to get user",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	return user, nil
}

// ListActiveWorkers implements store.UserDirectory.ListActiveWorkers
func (s *PostgresUserDirectory) ListActiveWorkers(
	ctx context.Context,
	companyID uuid.UUID,
	department string,
) ([]*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + userColumns + `
		FROM users u
		WHERE u.company_id = $1 AND u.department = $2 AND u.role = 'worker' AND u.is_active
		ORDER BY u.id`
	rows, err := s.db.QueryContext(ctx, query, companyID, department)
	if err != nil {
		log.Error("failed to list workers",
			slog.String("error", err.Error()),
			slog.String("company_id", companyID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, MapError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return users, nil
}

// Save inserts or replaces a user and their capabilities. The directory is
// owned by another subsystem; this exists for seeding and tests.
func (s *PostgresUserDirectory) Save(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, company_id, name, role, department, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			department = EXCLUDED.department,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query,
		user.ID, user.CompanyID, user.Name, string(user.Role), user.Department, user.IsActive,
	); err != nil {
		return MapError(err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_capabilities WHERE user_id = $1`, user.ID); err != nil {
		return MapError(err)
	}
	for _, c := range user.Capabilities {
		level := c.Level
		if level == 0 {
			level = 1
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO user_capabilities (user_id, name, level) VALUES ($1, $2, $3)`,
			user.ID, domain.NormalizeCapabilityName(c.Name), level,
		); err != nil {
			return MapError(err)
		}
	}
	return nil
}
