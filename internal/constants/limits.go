package constants

const (
	MaxUsernameLength = 50
	MaxEmailLength    = 100

	// bcrypt only reads the first 72 bytes of a password.
	MaxPasswordBytes = 72

	DefaultBcryptCost = 12
)
