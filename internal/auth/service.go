package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrSessionInvalid     = errors.New("session invalid or expired")
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

func isValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateUserInput struct {
	Username string
	Password string
	FullName string
	Role     string
}

type UpdateUserInput struct {
	ID       int64
	FullName string
	Role     string
	Password string // empty keeps the current hash
}

type Service struct {
	db         *sql.DB
	sessionTTL time.Duration
	bcryptCost int
}

func NewService(db *sql.DB) *Service {
	return &Service{
		db:         db,
		sessionTTL: 12 * time.Hour,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	var user User
	var passwordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, role, is_active, created_at, password_hash
		FROM users
		WHERE username = $1 AND is_active = TRUE
	`, username).Scan(&user.ID, &user.Username, &user.FullName, &user.Role, &user.IsActive, &user.CreatedAt, &passwordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := generateToken(32)
	if err != nil {
		return "", nil, fmt.Errorf("generate session token: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (user_id, session_token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, now())
	`, user.ID, hashToken(token), time.Now().Add(s.sessionTTL)); err != nil {
		return "", nil, fmt.Errorf("insert session: %w", err)
	}
	return token, &user, nil
}

func (s *Service) SessionUser(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrSessionInvalid
	}
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.full_name, u.role, u.is_active, u.created_at
		FROM auth_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > now()
		  AND u.is_active = TRUE
	`, hashToken(token)).Scan(&user.ID, &user.Username, &user.FullName, &user.Role, &user.IsActive, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("query session user: %w", err)
	}
	return &user, nil
}

func (s *Service) RevokeSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE auth_sessions SET revoked_at = now()
		WHERE session_token_hash = $1 AND revoked_at IS NULL
	`, hashToken(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Username == "" || in.FullName == "" || !isValidRole(in.Role) {
		return nil, ErrInvalidInput
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	var taken bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)
	`, in.Username).Scan(&taken); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user User
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, full_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, now(), now())
		RETURNING id, username, full_name, role, is_active, created_at
	`, in.Username, string(hash), in.FullName, in.Role).Scan(
		&user.ID, &user.Username, &user.FullName, &user.Role, &user.IsActive, &user.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &user, nil
}

func (s *Service) ListUsers(ctx context.Context, role string) ([]User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "" && !isValidRole(role) {
		return nil, ErrInvalidInput
	}

	query := `
		SELECT id, username, full_name, role, is_active, created_at
		FROM users
		WHERE is_active = TRUE
	`
	args := make([]any, 0, 1)
	if role != "" {
		query += ` AND role = $1`
		args = append(args, role)
	}
	query += ` ORDER BY username ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *Service) UpdateUser(ctx context.Context, in UpdateUserInput) (*User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.ID <= 0 || in.FullName == "" || !isValidRole(in.Role) {
		return nil, ErrInvalidInput
	}

	passwordHash := ""
	if in.Password != "" {
		if len(in.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	var user User
	if err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET full_name = $2,
			role = $3,
			password_hash = COALESCE(NULLIF($4, ''), password_hash),
			updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id, username, full_name, role, is_active, created_at
	`, in.ID, in.FullName, in.Role, passwordHash).Scan(
		&user.ID, &user.Username, &user.FullName, &user.Role, &user.IsActive, &user.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}

func (s *Service) DeactivateUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	var deactivated int64
	if err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id
	`, id).Scan(&deactivated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}

func generateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
