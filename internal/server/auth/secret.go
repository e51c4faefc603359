package auth

import (
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// SecretBytes is the amount of randomness in an ephemeral secret (256 bits).
const SecretBytes = 32

// Secret is a freshly generated ephemeral token value and its expiry.
type Secret struct {
	Value   string
	Expires time.Time
}

// NewSecret draws a hex-encoded random secret valid for ttl from now.
func NewSecret(now time.Time, ttl time.Duration) (Secret, error) {
	v, err := common.MakeRandHexString(SecretBytes)
	if err != nil {
		return Secret{}, err
	}
	return Secret{Value: v, Expires: now.Add(ttl)}, nil
}
