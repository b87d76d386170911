package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

type Permission struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

type AuthUser struct {
	ID           string
	Email        string
	RoleID       string
	RoleName     string
	PasswordHash string
	MFAEnabled   bool
	MFASecretEnc []byte
}

type Profile struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	RoleID      string     `json:"roleId"`
	Role        string     `json:"role"`
	MFAEnabled  bool       `json:"mfaEnabled"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	EmployeeID  string     `json:"employeeId,omitempty"`
	Permissions []string   `json:"permissions"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Profile   `json:"user"`
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	RoleID     string     `json:"roleId"`
	RoleName   string     `json:"role"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	CreatedBy  string     `json:"createdBy,omitempty"`
}

// IssuedAPIKey is returned once, on creation; only the hash is stored.
type IssuedAPIKey struct {
	APIKey
	Key string `json:"key"`
}

type APIKeyInput struct {
	Name      string
	RoleID    string
	ExpiresAt *time.Time
}
