package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
)

type IAuthService interface {
	Register(username, email, password string) (Token, error)
	Login(email, password string) (Token, domain.User, error)
}

type Token string

// AuthService issues the bearer credentials the gateway handshake verifies.
type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenService
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenService) IAuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(username, email, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}
	// Business rules first (email format, password complexity), checked
	// before any expensive cryptographic operation. ValidateRegister
	// already carries the wire sentinel for the failing field.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.users.CreateUser(username, email, hashedPassword)
	if err != nil {
		return "", err // propagates ErrUserAlreadyExists if email is taken
	}

	token, err := s.tokens.Generate(userID, []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, domain.User, error) {
	stored, err := s.users.GetUserByEmail(email)
	if err != nil {
		return "", domain.User{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, stored.PasswordHash)
	if err != nil || !match {
		return "", domain.User{}, errors.ErrInvalidCredentials
	}
	if !stored.Active {
		return "", domain.User{}, errors.ErrAccountDeactivated
	}

	token, err := s.tokens.Generate(stored.ID, stored.Roles)
	if err != nil {
		return "", domain.User{}, errors.ErrTokenGeneration
	}
	return Token(token), stored.ToDomain(), nil
}
