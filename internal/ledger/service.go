// Package ledger keeps account balances consistent with the transactions recorded
// against them. Every write runs in one storage unit of work and every balance change goes
// through ApplyDelta.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm/clause"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/storage"
)

type Service struct {
	db  *storage.Database
	log zerolog.Logger
}

func NewService(db *storage.Database, log zerolog.Logger) *Service {
	return &Service{db: db, log: log.With().Str("component", "ledger").Logger()}
}

// EnsureUser records the identity resolved by the auth layer. Empty email or name leave the
// stored values untouched.
func (s *Service) EnsureUser(ctx context.Context, id, email, name string) (*storage.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	user := storage.User{ID: id, Email: strings.TrimSpace(email), Name: strings.TrimSpace(name)}
	var columns []string
	if user.Email != "" {
		columns = append(columns, "email")
	}
	if user.Name != "" {
		columns = append(columns, "name")
	}

	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	if len(columns) > 0 {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(append(columns, "updated_at")),
		}
	}
	if err := s.db.DB(ctx).Clauses(onConflict).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to save user %s: %w", id, err)
	}
	return storage.FindUser(s.db.DB(ctx), id)
}
