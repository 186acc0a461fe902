package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// jwtLifetime bounds how long a minted token is presented before re-minting.
const jwtLifetime = 5 * time.Minute

// JWTOptions tunes token minting. KeyID, when set, is carried in the "kid"
// header so the server can resolve the sub-key used for the signature.
type JWTOptions struct {
	KeyID string
}

// IssueJWT mints a compact EdDSA-signed JWT over the given claims. The iat,
// exp, and jti claims are filled in when absent.
func IssueJWT(priv ed25519.PrivateKey, claims map[string]any, opts JWTOptions) (string, error) {
	now := time.Now()
	mapClaims := gojwt.MapClaims{}
	for k, v := range claims {
		mapClaims[k] = v
	}
	if _, ok := mapClaims["iat"]; !ok {
		mapClaims["iat"] = now.Unix()
	}
	if _, ok := mapClaims["exp"]; !ok {
		mapClaims["exp"] = now.Add(jwtLifetime).Unix()
	}
	if _, ok := mapClaims["jti"]; !ok {
		jti, err := randomTokenID()
		if err != nil {
			return "", err
		}
		mapClaims["jti"] = jti
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodEdDSA, mapClaims)
	if opts.KeyID != "" {
		token.Header["kid"] = opts.KeyID
	}
	signed, err := token.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// CheckJwtIsValid reports whether a token's time window still covers now.
// The signature is not verified; this is a client-side freshness check used
// to decide whether a cached token can be presented again.
func CheckJwtIsValid(token string) bool {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return false
	}
	now := time.Now()
	if exp, err := parsed.Claims.GetExpirationTime(); err != nil || exp == nil || !now.Before(exp.Time) {
		return false
	}
	if nbf, err := parsed.Claims.GetNotBefore(); err == nil && nbf != nil && now.Before(nbf.Time) {
		return false
	}
	return true
}

func randomTokenID() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
