// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

/*
GenerateSecureToken creates a cryptographically random opaque token.

Description: Used for refresh tokens. The raw bytes come from the platform
CSPRNG and are URL-safe base64 encoded for transport in JSON and cookies.

Parameters:
  - length: int (entropy in bytes, before encoding)

Returns:
  - string: URL-safe token
  - error: Randomness source failures
*/
func GenerateSecureToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec_generate_token_failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
