package service

import (
	"context"
	"errors"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/dto"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Operator roles.
const (
	RoleCashier    = "cashier"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("refresh token invalid or expired")
	ErrDelegationDenied   = errors.New("only supervisors can act on behalf of another operator")
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	CreateOperator(ctx context.Context, tenantID string, req dto.CreateOperatorRequest) (*dto.OperatorResponse, error)
}

type authService struct {
	repo repository.OperatorRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.OperatorRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

// session is the identity a token pair is minted for: the operator, and the
// operator whose register they act on when delegated.
type session struct {
	operator *model.Operator
	target   *model.Operator
}

func (s session) registerID() string {
	if s.target != nil {
		return s.target.RegisterID
	}
	return s.operator.RegisterID
}

func (s session) actingAs() *dto.ActingAsResponse {
	if s.target == nil {
		return nil
	}
	resp := actingAsToResponse(model.ActingAs{
		OperatorID:     s.operator.ID,
		OperatorName:   s.operator.Name,
		OnBehalfOfID:   &s.target.ID,
		OnBehalfOfName: &s.target.Name,
	})
	return &resp
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sess := session{operator: user}
	if req.OnBehalfOf != nil {
		if user.Role != RoleSupervisor && user.Role != RoleAdmin {
			return nil, ErrDelegationDenied
		}
		target, err := s.repo.FindByUsername(ctx, *req.OnBehalfOf)
		if err != nil || !target.Active || target.TenantID != user.TenantID {
			return nil, ErrNotFound
		}
		sess.target = target
	}
	return s.issue(sess)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != "refresh" {
		return nil, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil || !user.Active {
		return nil, ErrInvalidToken
	}
	sess := session{operator: user}
	if targetID, ok := claims["on_behalf_of_id"].(string); ok && targetID != "" {
		target, err := s.repo.FindByID(ctx, targetID)
		if err != nil || !target.Active {
			return nil, ErrInvalidToken
		}
		sess.target = target
	}
	return s.issue(sess)
}

func (s *authService) CreateOperator(ctx context.Context, tenantID string, req dto.CreateOperatorRequest) (*dto.OperatorResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	// by default the operator's own id names their register
	registerID := id
	if req.RegisterID != nil && *req.RegisterID != "" {
		registerID = *req.RegisterID
	}
	user := &model.Operator{
		ID:           id,
		TenantID:     tenantID,
		Username:     req.Username,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		RegisterID:   registerID,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, &PersistenceError{Op: "create operator", Err: err}
	}
	resp := operatorToResponse(user)
	return &resp, nil
}

func (s *authService) issue(sess session) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(sess, "access", time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(sess, "refresh", time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		RegisterID:   sess.registerID(),
		User:         operatorToResponse(sess.operator),
		ActingAs:     sess.actingAs(),
	}, nil
}

func (s *authService) generateToken(sess session, tokenType string, duration time.Duration) (string, error) {
	user := sess.operator
	claims := jwt.MapClaims{
		"user_id":     user.ID,
		"username":    user.Username,
		"name":        user.Name,
		"role":        user.Role,
		"tenant_id":   user.TenantID,
		"register_id": sess.registerID(),
		"token_type":  tokenType,
		"exp":         time.Now().Add(duration).Unix(),
		"iat":         time.Now().Unix(),
	}
	if sess.target != nil {
		claims["on_behalf_of_id"] = sess.target.ID
		claims["on_behalf_of_name"] = sess.target.Name
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func operatorToResponse(o *model.Operator) dto.OperatorResponse {
	return dto.OperatorResponse{
		ID:         o.ID,
		TenantID:   o.TenantID,
		Username:   o.Username,
		Name:       o.Name,
		Email:      o.Email,
		Role:       o.Role,
		RegisterID: o.RegisterID,
		Active:     o.Active,
	}
}
