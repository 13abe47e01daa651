package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cutekitten000/backlog/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// Provider owns the users table: registration, password checks and lookups.
type Provider struct {
	db   *gorm.DB
	cost int
}

func NewProvider(db *gorm.DB) *Provider {
	return &Provider{db: db, cost: bcrypt.DefaultCost}
}

// WithHashCost is used by tests to keep bcrypt fast.
func (p *Provider) WithHashCost(cost int) *Provider {
	p.cost = cost
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) Register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)

	var count int64
	if err := p.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
	}
	if err := p.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks the password. Unknown email and wrong password give
// the same error.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (p *Provider) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// NewSession returns a signed-out session backed by this provider.
func (p *Provider) NewSession() *Session {
	return newSession(p)
}
