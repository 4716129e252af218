package service

import "go-auth-api/model"

// TokenValidator checks access tokens. It has no state and no side effects.
type TokenValidator struct {
	signer *TokenSigner
}

func NewTokenValidator(signer *TokenSigner) *TokenValidator {
	return &TokenValidator{signer: signer}
}

func (v *TokenValidator) Validate(accessToken string) (*model.Identity, error) {
	return v.signer.Verify(accessToken)
}
