package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civic-tracker/internal/database"
	"civic-tracker/internal/models"
	"civic-tracker/pkg/auth"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong
// password alike.
var ErrInvalidCredentials = errors.New("invalid username or password")

type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type UserService struct {
	store database.UserStore
	jwt   *auth.JWTManager
	log   *logrus.Entry
}

func NewUserService(store database.UserStore, jwtManager *auth.JWTManager) *UserService {
	return &UserService{
		store: store,
		jwt:   jwtManager,
		log:   logrus.WithField("component", "users"),
	}
}

func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.WithField("username", user.Username).Warn("Failed login attempt")
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username, user.Role.String())
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &LoginResult{Token: token, User: *user}, nil
}

// Register creates a user with a bcrypt hashed password. It backs the seeding
// tool and tests; there is no public sign-up route.
func (s *UserService) Register(ctx context.Context, username, password string, role models.UserRole) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, validationError("username is required")
	}
	if len(password) < 6 {
		return nil, validationError("password must be at least 6 characters")
	}
	if !role.IsValid() {
		return nil, validationError("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, conflictError("username %s is already taken", username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFoundError("user %s not found", id.Hex())
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// List returns users, optionally narrowed to one role. Admin only.
func (s *UserService) List(ctx context.Context, actor models.Actor, role string) ([]models.User, error) {
	if !models.Allow(actor.Role, models.OpListUsers, false, false) {
		return nil, authorizationError("only administrators can list users")
	}

	var filter models.UserRole
	if role != "" {
		r, ok := models.FromString(strings.ToUpper(role))
		if !ok {
			return nil, validationError("unknown role %q", role)
		}
		filter = r
	}

	users, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
