package models

// Session identifies the signed-in user behind a request.
type Session struct {
	UserID      string `json:"id"`
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
}
