package service

import (
	"errors"

	"go-soda-machine/internal/model"
	"go-soda-machine/internal/repository"
	"go-soda-machine/pkg/jwt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthService interface {
	Login(email, password string) (string, *model.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	secret   []byte
}

func NewAuthService(userRepo repository.UserRepository, secret []byte) AuthService {
	return &authService{userRepo: userRepo, secret: secret}
}

// Login checks credentials and issues a signed token for the operator.
func (s *authService) Login(email, password string) (string, *model.User, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(s.secret, user.ID, user.Email)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}
