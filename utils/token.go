package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type JwtCustomClaim struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	return []byte(os.Getenv("API_SECRET"))
}

func JwtGenerate(userID int, name string, role string) (string, error) {
	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || tokenLifespan <= 0 {
		tokenLifespan = 12
	}
	secret := getJwtSecret()
	if len(secret) == 0 {
		return "", fmt.Errorf("API_SECRET is not set")
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:   userID,
		Name: name,
		Role: role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour * time.Duration(tokenLifespan)).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(secret)
}

func JwtValidate(token string) (*jwt.Token, error) {
	secret := getJwtSecret()
	if len(secret) == 0 {
		return nil, fmt.Errorf("API_SECRET is not set")
	}
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return secret, nil
	})
}

// ActorFromToken validates token and converts its claims into an Actor.
func ActorFromToken(token string) (Actor, error) {
	parsed, err := JwtValidate(token)
	if err != nil {
		return Actor{}, err
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid {
		return Actor{}, fmt.Errorf("invalid token claims")
	}
	return Actor{Id: claims.ID, Name: claims.Name, Role: claims.Role}, nil
}
