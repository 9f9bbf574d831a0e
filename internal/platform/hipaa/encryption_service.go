package hipaa

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// SealerFromHex builds a Sealer from a 64-character hex key.
//
// If key is empty, encryption at rest is disabled (development mode): a
// warning is logged and a nil Sealer is returned. An invalid key is an error
// so the application refuses to start with a misconfigured key.
func SealerFromHex(key string, logger zerolog.Logger) (*Sealer, error) {
	if key == "" {
		logger.Warn().Msg("health data encryption at rest disabled: ENCRYPTION_KEY is not set")
		return nil, nil
	}

	keyBytes, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}

	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
	}

	sealer, err := NewSealer(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("create sealer: %w", err)
	}

	logger.Info().Msg("health data encryption at rest enabled")
	return sealer, nil
}
