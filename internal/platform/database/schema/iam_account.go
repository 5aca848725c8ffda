package schema

// AccountTable represents the 'iam.account' table
type AccountTable struct {
	Table        string
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
	Status       string
	IsActive     string
	LastLoginAt  string
	CreatedAt    string
	UpdatedAt    string
	DeletedAt    string
}

// Account is the schema definition for iam.account
var Account = AccountTable{
	Table:        "iam.account",
	ID:           "id",
	Email:        "email",
	PasswordHash: "passwordhash",
	DisplayName:  "displayname",
	Role:         "role",
	Status:       "status",
	IsActive:     "isactive",
	LastLoginAt:  "lastloginat",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
	DeletedAt:    "deletedat",
}

// Columns returns all standard column names
func (t AccountTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.PasswordHash, t.DisplayName, t.Role, t.Status,
		t.IsActive, t.LastLoginAt, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	}
}
