package model

import (
	"slices"
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

type ExpertApplicationStatus string

const (
	ExpertApplicationNotApplied ExpertApplicationStatus = "not_applied"
	ExpertApplicationPending    ExpertApplicationStatus = "pending"
	ExpertApplicationApproved   ExpertApplicationStatus = "approved"
	ExpertApplicationRejected   ExpertApplicationStatus = "rejected"
)

type User struct {
	ID                      int64                   `json:"id"`
	TelegramID              *int64                  `json:"telegram_id"`
	Email                   string                  `json:"email"`
	Name                    string                  `json:"name"`
	Roles                   []Role                  `json:"roles"`
	ExpertApplicationStatus ExpertApplicationStatus `json:"expert_application_status"`
	CreatedAt               time.Time               `json:"created_at"`
}

func (u *User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, role)
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// ExpertRoleConsistent checks that the expert role is held exactly when the application is approved.
func (u *User) ExpertRoleConsistent() bool {
	return u.HasRole(RoleExpert) == (u.ExpertApplicationStatus == ExpertApplicationApproved)
}
