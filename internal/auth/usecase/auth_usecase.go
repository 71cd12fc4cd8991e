package usecase

import (
	"errors"
	"fmt"
	"time"

	authdomain "waiting-backend/internal/auth/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// AuthUsecase issues and validates HS256 bearer tokens
type AuthUsecase interface {
	IssueToken(userID, email string) (string, error)
	ValidateToken(tokenString string) (*authdomain.Principal, error)
}

type authUsecase struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(secret string, expiry time.Duration, now func() time.Time) AuthUsecase {
	if now == nil {
		now = time.Now
	}
	return &authUsecase{
		secret: []byte(secret),
		expiry: expiry,
		now:    now,
	}
}

func (u *authUsecase) IssueToken(userID, email string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidClaims)
	}
	now := u.now()
	claims := jwt.MapClaims{
		"user_id":  userID,
		"email":    email,
		"token_id": uuid.New().String(),
		"exp":      now.Add(u.expiry).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(u.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidClaims
	}
	email, _ := claims["email"].(string)

	return &authdomain.Principal{UserID: userID, Email: email}, nil
}
