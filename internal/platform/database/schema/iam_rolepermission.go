package schema

// RolePermissionTable represents the 'iam.rolepermission' table
type RolePermissionTable struct {
	Table     string
	RoleCode  string
	MenuCode  string
	Action    string
	Allowed   string
	CreatedAt string
}

// RolePermission is the schema definition for iam.rolepermission
var RolePermission = RolePermissionTable{
	Table:     "iam.rolepermission",
	RoleCode:  "rolecode",
	MenuCode:  "menucode",
	Action:    "action",
	Allowed:   "allowed",
	CreatedAt: "createdat",
}

// Columns returns all standard column names
func (t RolePermissionTable) Columns() []string {
	return []string{t.RoleCode, t.MenuCode, t.Action, t.Allowed, t.CreatedAt}
}
