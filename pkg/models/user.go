package models

type User struct {
	ID           int64  `json:"-"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	IsActive     bool   `json:"-"`
	IsStaff      bool   `json:"-"`
}
