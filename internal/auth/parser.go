package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurpe/condo-ledger/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are issued by the external auth service. Residents carry the unit
// they live in; admins carry the buildings they manage (none means all).
type Claims struct {
	Role        string   `json:"role"`
	UnitID      string   `json:"unit_id,omitempty"`
	BuildingIDs []string `json:"building_ids,omitempty"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

// Parse verifies an HS256 access token and returns the acting principal.
func (p *Parser) Parse(token string) (model.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return model.Principal{}, ErrInvalidToken
	}
	return claims.Principal()
}

func (c *Claims) Principal() (model.Principal, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	principal := model.Principal{
		UserID: userID,
		Role:   model.Role(strings.ToUpper(strings.TrimSpace(c.Role))),
	}
	for _, raw := range c.BuildingIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return model.Principal{}, fmt.Errorf("%w: bad building id", ErrInvalidToken)
		}
		principal.BuildingIDs = append(principal.BuildingIDs, id)
	}

	switch principal.Role {
	case model.RoleAdmin:
	case model.RoleResident:
		unitID, err := uuid.Parse(c.UnitID)
		if err != nil {
			return model.Principal{}, fmt.Errorf("%w: resident token without unit", ErrInvalidToken)
		}
		if len(principal.BuildingIDs) != 1 {
			return model.Principal{}, fmt.Errorf("%w: resident token must name one building", ErrInvalidToken)
		}
		principal.UnitID = &unitID
	default:
		return model.Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return principal, nil
}
