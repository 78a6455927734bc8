package model

import "fmt"

// ActingAs records who performed a ledger operation and, optionally, the
// supervised user they acted for. It replaces the "operator (for supervised)"
// strings that used to be baked into display names.
type ActingAs struct {
	OperatorID     string  `gorm:"type:varchar(64);not null"`
	OperatorName   string  `gorm:"type:varchar(120);not null"`
	OnBehalfOfID   *string `gorm:"type:varchar(64)"`
	OnBehalfOfName *string `gorm:"type:varchar(120)"`
}

// DisplayName renders the actor the way receipts and closings show it.
func (a ActingAs) DisplayName() string {
	if a.OnBehalfOfName == nil || *a.OnBehalfOfName == "" {
		return a.OperatorName
	}
	return fmt.Sprintf("%s (for %s)", a.OperatorName, *a.OnBehalfOfName)
}

// Delegated reports whether the operator acted for someone else.
func (a ActingAs) Delegated() bool {
	return a.OnBehalfOfID != nil && *a.OnBehalfOfID != ""
}
