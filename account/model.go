package account

import (
	"time"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/permission"
)

type accountRow struct {
	ID               string    `gorm:"type:uuid;primaryKey;column:id"`
	Email            string    `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash     string    `gorm:"column:password_hash;not null"`
	Role             string    `gorm:"column:role;not null;index"`
	Status           string    `gorm:"column:status;not null;index"`
	Verified         bool      `gorm:"column:verified;not null;default:false"`
	CompanyProfileID string    `gorm:"column:company_profile_id"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null"`
}

func (accountRow) TableName() string { return "accounts" }

func toRow(a portalauth.Account) accountRow {
	return accountRow{
		ID:               a.ID,
		Email:            a.Email,
		PasswordHash:     a.PasswordHash,
		Role:             a.Role.String(),
		Status:           a.Status.String(),
		Verified:         a.Verified,
		CompanyProfileID: a.CompanyProfileID,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func (r accountRow) account() (portalauth.Account, error) {
	role, err := permission.ParseRole(r.Role)
	if err != nil {
		return portalauth.Account{}, err
	}
	status, err := permission.ParseStatus(r.Status)
	if err != nil {
		return portalauth.Account{}, err
	}
	return portalauth.Account{
		ID:               r.ID,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		Role:             role,
		Status:           status,
		Verified:         r.Verified,
		CompanyProfileID: r.CompanyProfileID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}
