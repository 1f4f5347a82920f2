package models

// User is a linked platform account. Tokens are static sentinel strings
// issued by the fake OAuth flow; there is no expiry or refresh exchange.
type User struct {
	ID               string `json:"id"`
	FakeAccessToken  string `json:"fakeAccessToken"`
	FakeRefreshToken string `json:"fakeRefreshToken"`
	HomegraphEnabled bool   `json:"homegraphEnabled"`
}

// Admin is a provisioning-tool account for the management API.
type Admin struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
