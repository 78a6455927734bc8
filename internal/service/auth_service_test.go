package service_test

import (
	"context"
	"testing"

	"cashledger/internal/config"
	"cashledger/internal/dto"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memOperators struct{ byID map[string]*model.Operator }

func (r *memOperators) Create(_ context.Context, o *model.Operator) error {
	for _, existing := range r.byID {
		if existing.Username == o.Username {
			return repository.ErrDuplicate
		}
	}
	r.byID[o.ID] = o
	return nil
}

func (r *memOperators) FindByUsername(_ context.Context, username string) (*model.Operator, error) {
	for _, o := range r.byID {
		if o.Username == username {
			return o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memOperators) FindByID(_ context.Context, id string) (*model.Operator, error) {
	if o, ok := r.byID[id]; ok {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

func newAuth(t *testing.T) (service.AuthService, *memOperators, *config.Config) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	ops := &memOperators{byID: map[string]*model.Operator{}}
	for _, o := range []*model.Operator{
		{ID: "sup", TenantID: "t1", Username: "sam", Name: "Sam", Role: service.RoleSupervisor, RegisterID: "reg-sam"},
		{ID: "ana", TenantID: "t1", Username: "ana", Name: "Ana", Role: service.RoleCashier, RegisterID: "reg-ana"},
		{ID: "bob", TenantID: "t2", Username: "bob", Name: "Bob", Role: service.RoleCashier, RegisterID: "reg-bob"},
	} {
		o.PasswordHash = string(hash)
		o.Active = true
		ops.byID[o.ID] = o
	}
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 8, JWTRefreshHours: 24}
	return service.NewAuthService(ops, cfg), ops, cfg
}

func parse(t *testing.T, cfg *config.Config, token string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) { return []byte(cfg.JWTSecret), nil })
	require.NoError(t, err)
	return claims
}

func TestLogin_OwnRegister(t *testing.T) {
	auth, _, cfg := newAuth(t)
	resp, err := auth.Login(context.Background(), dto.LoginRequest{Username: "ana", Password: "secret123"})
	require.NoError(t, err)

	assert.Equal(t, "reg-ana", resp.RegisterID)
	assert.Nil(t, resp.ActingAs)
	claims := parse(t, cfg, resp.AccessToken)
	assert.Equal(t, "access", claims["token_type"])
	assert.Equal(t, "t1", claims["tenant_id"])
	assert.Equal(t, "reg-ana", claims["register_id"])
	assert.NotContains(t, claims, "on_behalf_of_id")
}

func TestLogin_SupervisorActsOnCashierRegister(t *testing.T) {
	auth, _, cfg := newAuth(t)
	target := "ana"
	resp, err := auth.Login(context.Background(), dto.LoginRequest{Username: "sam", Password: "secret123", OnBehalfOf: &target})
	require.NoError(t, err)

	assert.Equal(t, "reg-ana", resp.RegisterID)
	require.NotNil(t, resp.ActingAs)
	assert.Equal(t, "Sam (for Ana)", resp.ActingAs.Display)
	claims := parse(t, cfg, resp.AccessToken)
	assert.Equal(t, "sup", claims["user_id"])
	assert.Equal(t, "ana", claims["on_behalf_of_id"])
	assert.Equal(t, "Ana", claims["on_behalf_of_name"])
}

func TestLogin_Refusals(t *testing.T) {
	auth, ops, _ := newAuth(t)
	ctx := context.Background()

	_, err := auth.Login(ctx, dto.LoginRequest{Username: "ana", Password: "wrong-pass"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	target := "sam"
	_, err = auth.Login(ctx, dto.LoginRequest{Username: "ana", Password: "secret123", OnBehalfOf: &target})
	assert.ErrorIs(t, err, service.ErrDelegationDenied)

	other := "bob"
	_, err = auth.Login(ctx, dto.LoginRequest{Username: "sam", Password: "secret123", OnBehalfOf: &other})
	assert.ErrorIs(t, err, service.ErrNotFound, "cannot act for another tenant")

	ops.byID["ana"].Active = false
	_, err = auth.Login(ctx, dto.LoginRequest{Username: "ana", Password: "secret123"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	auth, _, cfg := newAuth(t)
	ctx := context.Background()
	target := "ana"
	login, err := auth.Login(ctx, dto.LoginRequest{Username: "sam", Password: "secret123", OnBehalfOf: &target})
	require.NoError(t, err)

	_, err = auth.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, service.ErrInvalidToken, "access tokens cannot refresh")

	refreshed, err := auth.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "reg-ana", refreshed.RegisterID)
	assert.Equal(t, "ana", parse(t, cfg, refreshed.AccessToken)["on_behalf_of_id"])
}

func TestCreateOperator_DefaultsRegisterToOwnID(t *testing.T) {
	auth, ops, _ := newAuth(t)
	resp, err := auth.CreateOperator(context.Background(), "t1", dto.CreateOperatorRequest{
		Username: "carla", Name: "Carla", Password: "longenough", Role: service.RoleCashier,
	})
	require.NoError(t, err)
	assert.Equal(t, resp.ID, resp.RegisterID)
	assert.Equal(t, "t1", resp.TenantID)

	stored := ops.byID[resp.ID]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("longenough")))

	_, err = auth.CreateOperator(context.Background(), "t1", dto.CreateOperatorRequest{
		Username: "carla", Name: "Carla", Password: "longenough", Role: service.RoleCashier,
	})
	var perr *service.PersistenceError
	assert.ErrorAs(t, err, &perr)
}
