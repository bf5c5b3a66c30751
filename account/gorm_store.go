package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/permission"
)

// GormStore implements portalauth.AccountStore on postgres.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Migrate creates or updates the accounts table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&accountRow{})
}

func (s *GormStore) GetAccountByEmail(ctx context.Context, email string) (portalauth.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).Take(&row).Error
	if err != nil {
		return portalauth.Account{}, mapError(err)
	}
	return row.account()
}

func (s *GormStore) GetAccountByID(ctx context.Context, id string) (portalauth.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		return portalauth.Account{}, mapError(err)
	}
	return row.account()
}

func (s *GormStore) CreateAccount(ctx context.Context, acct portalauth.Account) (portalauth.Account, error) {
	now := s.now().UTC()
	acct.Email = strings.ToLower(acct.Email)
	acct.CreatedAt = now
	acct.UpdatedAt = now

	row := toRow(acct)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return portalauth.Account{}, mapError(err)
	}
	return row.account()
}

// UpdateAccountStatus moves id from one status to another in a single
// conditional UPDATE, so two admins acting at once cannot both succeed.
func (s *GormStore) UpdateAccountStatus(ctx context.Context, id string, from, to permission.Status) (portalauth.Account, error) {
	var row accountRow
	res := s.db.WithContext(ctx).
		Model(&row).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, from.String()).
		Updates(map[string]any{
			"status":     to.String(),
			"updated_at": s.now().UTC(),
		})
	if res.Error != nil {
		return portalauth.Account{}, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetAccountByID(ctx, id); err != nil {
			return portalauth.Account{}, err
		}
		return portalauth.Account{}, ErrStatusChanged
	}
	return row.account()
}

func (s *GormStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res := s.db.WithContext(ctx).
		Model(&accountRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash": hash,
			"updated_at":    s.now().UTC(),
		})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListAccounts(ctx context.Context, filter portalauth.AccountFilter) ([]portalauth.Account, error) {
	q := s.db.WithContext(ctx).Model(&accountRow{})
	if filter.Status != permission.StatusUnknown {
		q = q.Where("status = ?", filter.Status.String())
	}
	if filter.Role != permission.RoleUnknown {
		q = q.Where("role = ?", filter.Role.String())
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []accountRow
	err := q.Order("created_at DESC").Order("id").Find(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]portalauth.Account, 0, len(rows))
	for _, row := range rows {
		acct, err := row.account()
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", row.ID, err)
		}
		out = append(out, acct)
	}
	return out, nil
}

func mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
