package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

// LoginRequest authenticates an operator. Supervisors may set OnBehalfOf to
// a cashier username to act on that cashier's register.
type LoginRequest struct {
	Username   string  `json:"username"     validate:"required,min=1"`
	Password   string  `json:"password"     validate:"required,min=4"`
	OnBehalfOf *string `json:"on_behalf_of" validate:"omitempty,min=1"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type CreateOperatorRequest struct {
	Username   string  `json:"username"    validate:"required,min=1,max=150"`
	Name       string  `json:"name"        validate:"required,min=2,max=100"`
	Email      *string `json:"email"       validate:"omitempty,email"`
	Password   string  `json:"password"    validate:"required,min=8"`
	Role       string  `json:"role"        validate:"required,oneof=cashier supervisor admin"`
	RegisterID *string `json:"register_id" validate:"omitempty,max=64"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OperatorResponse struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id"`
	Username   string  `json:"username"`
	Name       string  `json:"name"`
	Email      *string `json:"email"`
	Role       string  `json:"role"`
	RegisterID string  `json:"register_id"`
	Active     bool    `json:"active"`
}

type LoginResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	TokenType    string            `json:"token_type"`
	ExpiresIn    int               `json:"expires_in"` // seconds
	RegisterID   string            `json:"register_id"` // register the session acts on
	User         OperatorResponse  `json:"user"`
	ActingAs     *ActingAsResponse `json:"acting_as,omitempty"`
}
