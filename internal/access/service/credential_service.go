package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

// credentialClaims is the JWT body. sub, iat, exp and jti live in RegisteredClaims.
type credentialClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	OrgID   string `json:"org_id"`
	OrgRole string `json:"org_role"`
	jwt.RegisteredClaims
}

type credentialService struct {
	key        []byte
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

// NewCredentialService creates an HS256 credential service. When issuer is not
// empty it is written on issued credentials and required on verified ones.
func NewCredentialService(key []byte, issuer string, expiration time.Duration) CredentialService {
	return newCredentialService(key, issuer, expiration, time.Now)
}

func newCredentialService(
	key []byte,
	issuer string,
	expiration time.Duration,
	now func() time.Time,
) *credentialService {
	return &credentialService{
		key:        key,
		issuer:     issuer,
		expiration: expiration,
		now:        now,
	}
}

func (c *credentialService) Issue(
	input *accessDomain.IssueCredentialInput,
) (string, *accessDomain.Claims, error) {
	if input.SubjectID == uuid.Nil || input.TenantID == "" || !input.OrgRole.Valid() {
		return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput, "subject, tenant and a valid org role are required")
	}

	now := c.now().UTC().Truncate(time.Second)
	tokenID := uuid.Must(uuid.NewV7()).String()
	claims := credentialClaims{
		Email:   input.Email,
		Name:    input.Name,
		OrgID:   input.TenantID,
		OrgRole: string(input.OrgRole),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.SubjectID.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiration)),
			ID:        tokenID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", nil, apperrors.Wrap(err, "failed to sign credential")
	}

	return signed, &accessDomain.Claims{
		SubjectID: input.SubjectID,
		Email:     input.Email,
		Name:      input.Name,
		TenantID:  input.TenantID,
		OrgRole:   input.OrgRole,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.expiration),
	}, nil
}

func (c *credentialService) Verify(credential string) (*accessDomain.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims credentialClaims
	token, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, accessDomain.ErrCredentialExpired
		}
		return nil, apperrors.Wrap(accessDomain.ErrCredentialInvalid, err.Error())
	}
	if !token.Valid {
		return nil, accessDomain.ErrCredentialInvalid
	}

	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.Wrap(accessDomain.ErrCredentialInvalid, "sub is not a uuid")
	}
	if claims.OrgID == "" {
		return nil, apperrors.Wrap(accessDomain.ErrCredentialInvalid, "org_id is required")
	}
	orgRole := accessDomain.OrgRole(claims.OrgRole)
	if !orgRole.Valid() {
		return nil, apperrors.Wrap(accessDomain.ErrCredentialInvalid, "org_role is not recognized")
	}
	if claims.IssuedAt == nil {
		return nil, apperrors.Wrap(accessDomain.ErrCredentialInvalid, "iat is required")
	}

	return &accessDomain.Claims{
		SubjectID: subjectID,
		Email:     claims.Email,
		Name:      claims.Name,
		TenantID:  claims.OrgID,
		OrgRole:   orgRole,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
