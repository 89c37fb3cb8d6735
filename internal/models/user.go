package models

import "time"

type Status string

const (
	StatusOnline    Status = "ONLINE"
	StatusOffline   Status = "OFFLINE"
	StatusAway      Status = "AWAY"
	StatusBusy      Status = "BUSY"
	StatusInvisible Status = "INVISIBLE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy, StatusInvisible:
		return true
	}
	return false
}

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"displayName"`
	Avatar       *string    `json:"avatar,omitempty"`
	Bio          *string    `json:"bio,omitempty"`
	Status       Status     `json:"status"`
	CustomStatus *string    `json:"customStatus,omitempty"`
	IsVerified   bool       `json:"isVerified"`
	IsActive     bool       `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"-"`
	LastSeenAt   *time.Time `json:"-"`
}

// PublicUser is the part of a User that is safe to hand to clients.
type PublicUser struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Avatar      *string   `json:"avatar"`
	Bio         *string   `json:"bio"`
	Status      Status    `json:"status"`
	IsVerified  bool      `json:"isVerified"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		Bio:         u.Bio,
		Status:      u.Status,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
	}
}
