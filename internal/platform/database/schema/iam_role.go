package schema

// RoleTable represents the 'iam.role' table
type RoleTable struct {
	Table     string
	Code      string
	Name      string
	Level     string
	IsSystem  string
	CreatedAt string
	UpdatedAt string
}

// Role is the schema definition for iam.role
var Role = RoleTable{
	Table:     "iam.role",
	Code:      "code",
	Name:      "name",
	Level:     "level",
	IsSystem:  "issystem",
	CreatedAt: "createdat",
	UpdatedAt: "updatedat",
}

// Columns returns all standard column names
func (t RoleTable) Columns() []string {
	return []string{t.Code, t.Name, t.Level, t.IsSystem, t.CreatedAt, t.UpdatedAt}
}
