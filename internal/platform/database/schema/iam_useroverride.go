package schema

// UserOverrideTable represents the 'iam.useroverride' table
type UserOverrideTable struct {
	Table     string
	UserID    string
	MenuCode  string
	Action    string
	Allowed   string
	CreatedAt string
}

// UserOverride is the schema definition for iam.useroverride
var UserOverride = UserOverrideTable{
	Table:     "iam.useroverride",
	UserID:    "userid",
	MenuCode:  "menucode",
	Action:    "action",
	Allowed:   "allowed",
	CreatedAt: "createdat",
}

// Columns returns all standard column names
func (t UserOverrideTable) Columns() []string {
	return []string{t.UserID, t.MenuCode, t.Action, t.Allowed, t.CreatedAt}
}
