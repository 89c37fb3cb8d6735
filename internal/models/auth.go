package models

const TokenTypeBearer = "Bearer"

type AuthBundle struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	TokenType    string     `json:"tokenType"`
	ExpiresAt    string     `json:"expiresAt"`
	User         PublicUser `json:"user"`
}
