package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/i474232898/climate-zones/internal/auth"
)

// LoadCredentials reads the {client_id, client_secret} JSON file.
// A missing file or key is an error the caller should treat as fatal.
func LoadCredentials(path string) (auth.Credential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return auth.Credential{}, fmt.Errorf("credentials file %s: %w", path, err)
	}

	var cred auth.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return auth.Credential{}, fmt.Errorf("credentials file %s: %w", path, err)
	}
	if err := validate.Struct(cred); err != nil {
		return auth.Credential{}, fmt.Errorf("credentials file %s: %w: %v", path, auth.ErrMissingCredential, err)
	}
	return cred, nil
}
