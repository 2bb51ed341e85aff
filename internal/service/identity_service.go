package service

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gw-settlement-guard/internal/custom_err"
	"gw-settlement-guard/internal/models"
)

// Identity проверяет токены, выданные шлюзом. Сервис не ведет учетных
// записей: пользователь уже аутентифицирован выше по цепочке.
type Identity interface {
	ValidateToken(tokenString string) (*models.IdentityClaims, error)
}

type IdentityService struct {
	jwtSecret []byte
}

func NewIdentityService(jwtSecret string) *IdentityService {
	return &IdentityService{jwtSecret: []byte(jwtSecret)}
}

func (s *IdentityService) ValidateToken(tokenString string) (*models.IdentityClaims, error) {
	claims := &models.IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, custom_err.ErrTokenExpired
		}
		return nil, custom_err.ErrInvalidToken
	}

	if !token.Valid {
		return nil, custom_err.ErrInvalidToken
	}

	if claims.UserID == uuid.Nil || claims.UserName == "" {
		return nil, custom_err.ErrInvalidToken
	}

	return claims, nil
}
