package dto

type LockStatusResponse struct {
	Locked           bool    `json:"locked"`
	ClosingID        *string `json:"closing_id,omitempty"`
	ReopenAt         *string `json:"reopen_at,omitempty"`
	RemainingSeconds int64   `json:"remaining_seconds"`
	Remaining        string  `json:"remaining,omitempty"` // "3h 12m"
}

type SessionSummaryResponse struct {
	RegisterID  string                 `json:"register_id"`
	BusinessDay string                 `json:"business_day"`
	Lock        LockStatusResponse     `json:"lock"`
	AllTime     BalanceResponse        `json:"all_time"`
	Today       BalanceResponse        `json:"today"`
	Sales       SalesBreakdownResponse `json:"sales"`
	Outflows    OutflowsResponse       `json:"outflows"`
}

type UpsertRegisterRequest struct {
	Name     string `json:"name"      validate:"required,min=2,max=100"`
	TimeZone string `json:"time_zone" validate:"omitempty,timezone"`
}

type RegisterResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TimeZone string `json:"time_zone"`
	Active   bool   `json:"active"`
}
