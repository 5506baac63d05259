package models

// Role is a named permission grant. Names are compared exactly.
type Role struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// TableName returns the table name for the Role model
func (Role) TableName() string {
	return "roles"
}
