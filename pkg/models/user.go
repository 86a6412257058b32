package models

type User struct {
	ID           int    `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	Fullname     string `json:"fullname" db:"fullname"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         string `json:"role" db:"role"`
	ManagerID    *int   `json:"manager_id,omitempty" db:"manager_id"`
	Active       bool   `json:"active" db:"active"`
}
