// Package domain defines the tenant directory model.
//
// A tenant (organization) is mapped by the central directory to the locator of its
// isolated data store. Only the directory produces locators; request input never does.
package domain

import (
	"regexp"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/braidmgr/braidmgr/internal/errors"
)

var locatorRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// StoreLocator identifies a tenant's isolated data store (its database name).
type StoreLocator string

// String returns the locator as a plain string.
func (l StoreLocator) String() string {
	return string(l)
}

// Validate checks that the locator is a safe database identifier.
func (l StoreLocator) Validate() error {
	if !locatorRegex.MatchString(string(l)) {
		return ErrInvalidLocator
	}
	return nil
}

// TenantRecord is a row of the central organizations table.
type TenantRecord struct {
	ID        string
	Name      string
	Locator   StoreLocator
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Active reports whether the tenant has not been soft-deleted.
func (t *TenantRecord) Active() bool {
	return t.DeletedAt == nil
}

// CreateTenantInput carries the fields needed to register a tenant.
type CreateTenantInput struct {
	ID      string
	Name    string
	Locator string
}

// Validate checks the input fields.
func (c *CreateTenantInput) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required, validation.Length(1, 64)),
		validation.Field(&c.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&c.Locator, validation.Required, validation.Match(locatorRegex)),
	)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return nil
}
