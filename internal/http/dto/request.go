package dto

import (
	validation "github.com/jellydator/validation"

	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
	userUseCase "github.com/braidmgr/braidmgr/internal/user/usecase"
	appValidation "github.com/braidmgr/braidmgr/internal/validation"
)

// RegisterRequest is the body of POST /v1/auth/register. Password strength is
// checked by the use case against the configured policy.
type RegisterRequest struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
}

// Validate checks required fields and the email format.
func (r *RegisterRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.OrganizationID,
			validation.Required.Error("organization_id is required"),
			appValidation.NoWhitespace,
		),
		validation.Field(&r.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
		),
		validation.Field(&r.Email,
			validation.Required.Error("email is required"),
			appValidation.NotBlank,
		),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	)
	return appValidation.WrapValidationError(err)
}

// ToRegisterInput converts the request to use case input.
func (r *RegisterRequest) ToRegisterInput() userUseCase.RegisterInput {
	return userUseCase.RegisterInput{
		OrganizationID: r.OrganizationID,
		Name:           r.Name,
		Email:          r.Email,
		Password:       r.Password,
	}
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (r *LoginRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required.Error("email is required"), appValidation.NotBlank),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	)
	return appValidation.WrapValidationError(err)
}

// ToLoginInput converts the request to use case input.
func (r *LoginRequest) ToLoginInput(client userDomain.Client) userUseCase.LoginInput {
	return userUseCase.LoginInput{
		Email:    r.Email,
		Password: r.Password,
		Client:   client,
	}
}

// RefreshRequest is the body of POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Validate checks required fields.
func (r *RefreshRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.RefreshToken, validation.Required.Error("refresh_token is required")),
	)
	return appValidation.WrapValidationError(err)
}

// LogoutRequest is the body of POST /v1/auth/logout. Set All to revoke every
// refresh token of the caller.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	All          bool   `json:"all"`
}

// Validate requires a refresh token unless All is set.
func (r *LogoutRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.RefreshToken,
			validation.When(!r.All, validation.Required.Error("refresh_token is required unless all is set")),
		),
	)
	return appValidation.WrapValidationError(err)
}
