package token_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"bookshop/internal/pkg/token"
)

// TestGenerateAndValidateToken testa o ciclo completo: gerar e validar.
func TestGenerateAndValidateToken(t *testing.T) {
	svc := token.NewService("chave-secreta-de-teste", time.Hour)

	userID := uuid.New().String()
	tokenString, err := svc.GenerateToken(userID, "admin")

	assert.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := svc.ValidateToken(tokenString)

	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "BookShop-API", claims.Issuer)
}

// TestValidateToken_Fail_WrongKey testa um token assinado com outra chave.
func TestValidateToken_Fail_WrongKey(t *testing.T) {
	svc := token.NewService("chave-secreta-de-teste", time.Hour)
	other := token.NewService("outra-chave", time.Hour)

	tokenString, err := other.GenerateToken(uuid.New().String(), "user")
	assert.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	assert.Error(t, err)
}

// TestValidateToken_Fail_Expired testa um token já expirado.
func TestValidateToken_Fail_Expired(t *testing.T) {
	svc := token.NewService("chave-secreta-de-teste", -time.Minute)

	tokenString, err := svc.GenerateToken(uuid.New().String(), "user")
	assert.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	assert.Error(t, err)
}
