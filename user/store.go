package user

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);
`

// SQLiteStore persists users in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the users table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create registers a new user, hashing the password with bcrypt.
func (s *SQLiteStore) Create(u *User, password string) (string, error) {
	if u.Username == "" || u.Email == "" {
		return "", fmt.Errorf("create user: username and email are required")
	}
	if password == "" {
		return "", fmt.Errorf("create user: password is required")
	}

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`,
		u.Username, u.Email).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("check existing user: %w", err)
	}
	if n > 0 {
		return "", ErrExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	_, err = s.db.Exec(`
		INSERT INTO users (id, first_name, last_name, username, email, password_hash, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.FirstName, u.LastName, u.Username, u.Email, string(hash), u.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return u.ID, nil
}

// Get retrieves a user by ID.
func (s *SQLiteStore) Get(id string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, first_name, last_name, username, email, created_at
		FROM users WHERE id = ?`, id)
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Authenticate verifies a username/password pair.
func (s *SQLiteStore) Authenticate(username, password string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, first_name, last_name, username, email, password_hash, created_at
		FROM users WHERE username = ?`, username)
	var u User
	var hash string
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &hash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return &u, nil
}
