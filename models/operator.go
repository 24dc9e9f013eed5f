package models

// Operator is a back-office staff account.
// It maps to the `operators` table in SQLite.
type Operator struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Role     string `db:"role" json:"role"`
}

// Operator roles. Admins may run transitions, bulk actions, and catalog writes;
// staff get read access.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// NewAdminOperator creates an operator model with Role preset to admin.
func NewAdminOperator(username string) *Operator {
	return &Operator{Username: username, Role: RoleAdmin}
}
