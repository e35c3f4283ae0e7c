package handler

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// mintStreamToken issues the short-lived token a joined member presents for
// the websocket upgrade. The claims identify the membership, never the user.
func (h *Handler) mintStreamToken(memberID, anonID, roomID string) (string, error) {
	claims := jwt.MapClaims{
		"membership_id": memberID,
		"anon_id":       anonID,
		"room_id":       roomID,
		"exp":           time.Now().Add(72 * time.Hour).Unix(),
		"iss":           "anonrooms-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// validateStreamToken returns the membership and room ids from a token.
func (h *Handler) validateStreamToken(tokenString string) (memberID, roomID string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	memberID, _ = claims["membership_id"].(string)
	roomID, _ = claims["room_id"].(string)
	if memberID == "" || roomID == "" {
		return "", "", errors.New("incomplete claims")
	}
	return memberID, roomID, nil
}
