package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HS256-signed bearer tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTVerifier creates a Verifier for HS256 tokens signed with secret.
// When issuer is non-empty, the token "iss" claim must match.
//
// Precondition: secret must be non-empty.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	if secret == "" {
		panic("auth: NewJWTVerifier called with empty secret")
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// VerifyToken parses and validates token, returning the identity claims.
//
// Postcondition: on success Claims.UserID is non-empty; every failure wraps
// ErrAuthentication.
func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, fmt.Errorf("%w: missing token", ErrAuthentication)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: token has no subject", ErrAuthentication)
	}
	return Claims{UserID: claims.Subject, Role: claims.Role}, nil
}
