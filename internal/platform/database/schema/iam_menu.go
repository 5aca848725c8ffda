package schema

// MenuTable represents the 'iam.menu' table
type MenuTable struct {
	Table     string
	ID        string
	ParentID  string
	Code      string
	Name      string
	Labels    string
	SortOrder string
	CreatedAt string
}

// Menu is the schema definition for iam.menu
var Menu = MenuTable{
	Table:     "iam.menu",
	ID:        "id",
	ParentID:  "parentid",
	Code:      "code",
	Name:      "name",
	Labels:    "labels",
	SortOrder: "sortorder",
	CreatedAt: "createdat",
}

// Columns returns all standard column names
func (t MenuTable) Columns() []string {
	return []string{t.ID, t.ParentID, t.Code, t.Name, t.Labels, t.SortOrder, t.CreatedAt}
}
