package model

import "github.com/google/uuid"

const (
	RoleBondsUser    = "BONDS_USER"
	RoleBondsManager = "BONDS_MANAGER"
)

type Principal struct {
	UserID uuid.UUID
	Roles  []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p Principal) IsManager() bool {
	return p.HasRole(RoleBondsManager)
}

func (p Principal) CanWrite() bool {
	return p.HasRole(RoleBondsUser) || p.IsManager()
}
