package domain

// Principal is the authenticated caller carried by a bearer token
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
