package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IdentityClaims — claims токена, выданного шлюзом после аутентификации.
// Сервис не проверяет учетные данные, он доверяет личности из токена.
type IdentityClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user_name"`
	jwt.RegisteredClaims
}
