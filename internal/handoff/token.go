package handoff

import (
	"fmt"
	"time"

	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// qrClaims is the payload carried inside a QR handoff token. The nonce ties
// the token to the code pair currently stored on the order, so regenerating
// codes invalidates every previously issued token.
type qrClaims struct {
	OrderID uuid.UUID          `json:"oid"`
	Phase   enums.HandoffPhase `json:"phase"`
	Nonce   string             `json:"nonce"`
	jwt.RegisteredClaims
}

func mintQRToken(cfg config.HandoffConfig, orderID uuid.UUID, phase enums.HandoffPhase, nonce string, issuedAt, expiresAt time.Time) (string, error) {
	if cfg.TokenSecret == "" {
		return "", fmt.Errorf("handoff token secret is required")
	}
	claims := qrClaims{
		OrderID: orderID,
		Phase:   phase,
		Nonce:   nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.TokenIssuer,
			Subject:   orderID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.TokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign handoff token: %w", err)
	}
	return signed, nil
}

func parseQRToken(cfg config.HandoffConfig, raw string) (*qrClaims, error) {
	claims := &qrClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return []byte(cfg.TokenSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.TokenIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("parse handoff token: %w", err)
	}
	return claims, nil
}
