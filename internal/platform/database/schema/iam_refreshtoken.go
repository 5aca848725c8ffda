package schema

// RefreshTokenTable represents the 'iam.refreshtoken' table
type RefreshTokenTable struct {
	Table      string
	ID         string
	UserID     string
	ChainID    string
	TokenHash  string
	RememberMe string
	IssuedAt   string
	ExpiresAt  string
	ConsumedAt string
	RevokedAt  string
}

// RefreshToken is the schema definition for iam.refreshtoken
var RefreshToken = RefreshTokenTable{
	Table:      "iam.refreshtoken",
	ID:         "id",
	UserID:     "userid",
	ChainID:    "chainid",
	TokenHash:  "tokenhash",
	RememberMe: "rememberme",
	IssuedAt:   "issuedat",
	ExpiresAt:  "expiresat",
	ConsumedAt: "consumedat",
	RevokedAt:  "revokedat",
}

// Columns returns all standard column names
func (t RefreshTokenTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.ChainID, t.TokenHash, t.RememberMe, t.IssuedAt, t.ExpiresAt, t.ConsumedAt, t.RevokedAt,
	}
}
