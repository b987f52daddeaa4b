package auth

import (
	"errors"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

// GoogleIdentity is what a verified Google ID token tells us about the user.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier checks a third-party ID token.
type IdentityVerifier interface {
	Verify(idToken string) (GoogleIdentity, error)
}

// GoogleVerifier verifies Google Sign-In ID tokens against one OAuth client id.
type GoogleVerifier struct {
	ClientID string
}

var ErrGoogleDisabled = errors.New("google sign-in not configured")

// Verify validates the token signature and audience and decodes its claims.
func (g GoogleVerifier) Verify(idToken string) (GoogleIdentity, error) {
	if g.ClientID == "" {
		return GoogleIdentity{}, ErrGoogleDisabled
	}
	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.ClientID}); err != nil {
		return GoogleIdentity{}, err
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return GoogleIdentity{}, err
	}
	return GoogleIdentity{
		Subject: claimSet.Sub,
		Email:   claimSet.Email,
		Name:    claimSet.Name,
	}, nil
}
