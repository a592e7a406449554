package domain

import "github.com/google/uuid"

// PartyKind - тег варианта участника переписки
type PartyKind string

const (
	PartyKindContact PartyKind = "contact"
	PartyKindStaff   PartyKind = "staff"
)

// Party - участник переписки: либо внешний контакт, либо сотрудник.
// Реализуется только *Contact и *StaffMember.
type Party interface {
	PartyID() uuid.UUID
	PartyKind() PartyKind
	PartyTenant() string
	sealedParty()
}

type StaffMember struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}

const (
	StaffRoleAdmin    = "admin"
	StaffRoleSalesman = "salesman"
	StaffRoleBot      = "bot"
)

func (c *Contact) PartyID() uuid.UUID   { return c.ID }
func (c *Contact) PartyKind() PartyKind { return PartyKindContact }
func (c *Contact) PartyTenant() string  { return c.TenantID }
func (c *Contact) sealedParty()         {}

func (s *StaffMember) PartyID() uuid.UUID   { return s.ID }
func (s *StaffMember) PartyKind() PartyKind { return PartyKindStaff }
func (s *StaffMember) PartyTenant() string  { return s.TenantID }
func (s *StaffMember) sealedParty()         {}
