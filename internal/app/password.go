package app

import "crypto/rand"

const credentialLength = 6

// newCredential produces a short random numeric credential for a slot.
func newCredential() (string, error) {
	b := make([]byte, credentialLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i, v := range b {
		b[i] = '0' + v%10
	}
	return string(b), nil
}
