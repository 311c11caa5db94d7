package store

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

const sessionKeyFile = "session.key"

// SessionKey loads the persistent session secret from the data dir,
// generating a 32-byte random key on first run. The web layer signs its
// cookies with it; the core only guarantees the key survives restarts.
func SessionKey(dataDir string) ([]byte, error) {
	path := filepath.Join(dataDir, sessionKeyFile)

	key, err := os.ReadFile(path)
	if err == nil && len(key) == 32 {
		return key, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("persist session key: %w", err)
	}
	return key, nil
}
