package ledger

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
	"github.com/NgigiN/fintrack/internal/storage"
)

type AccountInput struct {
	Name      string             `json:"name"`
	Type      domain.AccountType `json:"type"`
	Balance   money.Money        `json:"balance"`
	IsDefault bool               `json:"isDefault"`
}

func (in *AccountInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: account name is required", domain.ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", domain.ErrInvalidInput, in.Type)
	}
	if in.Balance.IsNegative() {
		return fmt.Errorf("%w: initial balance must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// CreateAccount opens an account. The owner's first account always becomes the default;
// making a new account default clears the flag on the others in the same unit of work.
func (s *Service) CreateAccount(ctx context.Context, ownerID string, in AccountInput) (*storage.Account, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	account := storage.Account{
		UserID:  ownerID,
		Name:    in.Name,
		Type:    in.Type,
		Balance: in.Balance,
	}
	err := s.db.UnitOfWork(ctx, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&storage.Account{}).Where("user_id = ?", ownerID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count accounts: %w", err)
		}
		account.IsDefault = existing == 0 || in.IsDefault
		if account.IsDefault && existing > 0 {
			if err := clearDefault(tx, ownerID); err != nil {
				return err
			}
		}
		if err := tx.Create(&account).Error; err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", ownerID).
		Str("account_id", account.ID).
		Bool("default", account.IsDefault).
		Msg("account created")
	return &account, nil
}

// SetDefaultAccount moves the default flag to accountID.
func (s *Service) SetDefaultAccount(ctx context.Context, ownerID, accountID string) (*storage.Account, error) {
	var account *storage.Account
	err := s.db.UnitOfWork(ctx, func(tx *gorm.DB) error {
		var err error
		if account, err = storage.FindAccount(tx, ownerID, accountID); err != nil {
			return err
		}
		if err := clearDefault(tx, ownerID); err != nil {
			return err
		}
		if err := tx.Model(&storage.Account{}).
			Where("id = ? AND user_id = ?", accountID, ownerID).
			Update("is_default", true).Error; err != nil {
			return fmt.Errorf("failed to set default account: %w", err)
		}
		account.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, ownerID, accountID string) (*storage.Account, error) {
	return storage.FindAccount(s.db.DB(ctx), ownerID, accountID)
}

func (s *Service) DefaultAccount(ctx context.Context, ownerID string) (*storage.Account, error) {
	return storage.FindDefaultAccount(s.db.DB(ctx), ownerID)
}

func (s *Service) ListAccounts(ctx context.Context, ownerID string) ([]storage.Account, error) {
	var accounts []storage.Account
	if err := s.db.DB(ctx).Where("user_id = ?", ownerID).Order("created_at desc").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func clearDefault(tx *gorm.DB, ownerID string) error {
	err := tx.Model(&storage.Account{}).
		Where("user_id = ? AND is_default = ?", ownerID, true).
		Update("is_default", false).Error
	if err != nil {
		return fmt.Errorf("failed to clear default account: %w", err)
	}
	return nil
}
