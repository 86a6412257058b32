package models

type Location struct {
	ID   int     `json:"id" db:"id"`
	Name string  `json:"name" db:"name"`
	Code *string `json:"code,omitempty" db:"code"`
}
