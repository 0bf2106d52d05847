package lighthouse

import "fmt"

// Credentials identify a lighthouse user
type Credentials struct {
	Username string
	Token    string
}

// NewCredentials creates credentials from a username and API token
func NewCredentials(username, token string) Credentials {
	return Credentials{Username: username, Token: token}
}

// Valid reports whether both fields are set
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Token != ""
}

// String never includes the token
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Token: <redacted>}", c.Username)
}

func (c Credentials) authentication() Authentication {
	return Authentication{Username: c.Username, Token: c.Token}
}

// modelPath is the resource path of the user's display model
func (c Credentials) modelPath() []string {
	return []string{"user", c.Username, "model"}
}
