package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	hsAuth "github.com/MrEthical07/hsAuth"
	"github.com/MrEthical07/hsAuth/internal"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUserExists is returned by CreateUser for a taken user id.
var ErrUserExists = errors.New("user already exists")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS hsauth_users (
  user_id TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL DEFAULT '',
  display_name TEXT NOT NULL DEFAULT '',
  avatar_url TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS hsauth_devices (
  user_id TEXT NOT NULL,
  device_id TEXT NOT NULL,
  token_hash TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL DEFAULT '',
  last_seen_ip TEXT NOT NULL DEFAULT '',
  last_seen_ts BIGINT NOT NULL DEFAULT 0,
  PRIMARY KEY (user_id, device_id)
)`,
}

type userRow struct {
	UserID       string `db:"user_id"`
	PasswordHash string `db:"password_hash"`
	DisplayName  string `db:"display_name"`
	AvatarURL    string `db:"avatar_url"`
	Kind         string `db:"kind"`
}

type deviceRow struct {
	UserID      string `db:"user_id"`
	DeviceID    string `db:"device_id"`
	TokenHash   string `db:"token_hash"`
	DisplayName string `db:"display_name"`
	LastSeenIP  string `db:"last_seen_ip"`
	LastSeenTS  int64  `db:"last_seen_ts"`
}

func (r deviceRow) device() hsAuth.Device {
	return hsAuth.Device{
		UserID:      r.UserID,
		DeviceID:    r.DeviceID,
		DisplayName: r.DisplayName,
		LastSeenIP:  r.LastSeenIP,
		LastSeenTS:  r.LastSeenTS,
	}
}

// Store is a sqlx-backed user provider and device store.
type Store struct {
	db *sqlx.DB
}

var (
	_ hsAuth.UserProvider = (*Store)(nil)
	_ hsAuth.DeviceStore  = (*Store)(nil)
)

// Open connects to dsn with driver (DriverSQLite or DriverPostgres) and
// checks the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("dsn is required")
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// modernc connections do not share an in-memory database.
		db.SetMaxOpenConns(1)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

/*
====================================
USERS
====================================
*/

// CreateUser inserts u. PasswordHash must already be a PHC string.
func (s *Store) CreateUser(ctx context.Context, u hsAuth.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("user id is required")
	}

	res, err := s.db.NamedExecContext(ctx, `INSERT INTO hsauth_users (user_id, password_hash, display_name, avatar_url, kind)
VALUES (:user_id, :password_hash, :display_name, :avatar_url, :kind)
ON CONFLICT (user_id) DO NOTHING`, userRow{
		UserID:       u.ID,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		AvatarURL:    u.AvatarURL,
		Kind:         u.Kind,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

// GetUser returns hsAuth.ErrUserNotFound for unknown ids.
func (s *Store) GetUser(ctx context.Context, userID string) (hsAuth.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT user_id, password_hash, display_name, avatar_url, kind
FROM hsauth_users WHERE user_id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hsAuth.User{}, hsAuth.ErrUserNotFound
		}
		return hsAuth.User{}, fmt.Errorf("get user: %w", err)
	}
	return hsAuth.User{
		ID:           row.UserID,
		PasswordHash: row.PasswordHash,
		DisplayName:  row.DisplayName,
		AvatarURL:    row.AvatarURL,
		Kind:         row.Kind,
	}, nil
}

func (s *Store) Exists(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(1) FROM hsauth_users WHERE user_id = ?`), userID)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return n > 0, nil
}

/*
====================================
DEVICES
====================================
*/

const deviceColumns = `user_id, device_id, token_hash, display_name, last_seen_ip, last_seen_ts`

func (s *Store) FindByToken(ctx context.Context, token string) (*hsAuth.Device, error) {
	if token == "" {
		return nil, hsAuth.ErrDeviceNotFound
	}
	row, err := s.getDevice(ctx, `SELECT `+deviceColumns+` FROM hsauth_devices WHERE token_hash = ?`, internal.HashToken(token))
	if err != nil {
		return nil, err
	}
	d := row.device()
	d.Token = token
	return &d, nil
}

func (s *Store) Get(ctx context.Context, userID, deviceID string) (*hsAuth.Device, error) {
	row, err := s.getDevice(ctx, `SELECT `+deviceColumns+` FROM hsauth_devices WHERE user_id = ? AND device_id = ?`, userID, deviceID)
	if err != nil {
		return nil, err
	}
	d := row.device()
	return &d, nil
}

// Upsert stores d keyed by (UserID, DeviceID), replacing any previous
// credential of that device. A blank DisplayName keeps the stored one.
func (s *Store) Upsert(ctx context.Context, d *hsAuth.Device) error {
	if d == nil || d.UserID == "" || d.DeviceID == "" || d.Token == "" {
		return errors.New("device upsert requires user, device and token")
	}

	_, err := s.db.NamedExecContext(ctx, `INSERT INTO hsauth_devices (`+deviceColumns+`)
VALUES (:user_id, :device_id, :token_hash, :display_name, :last_seen_ip, :last_seen_ts)
ON CONFLICT (user_id, device_id) DO UPDATE SET
  token_hash = excluded.token_hash,
  display_name = CASE WHEN excluded.display_name = '' THEN hsauth_devices.display_name ELSE excluded.display_name END,
  last_seen_ip = excluded.last_seen_ip,
  last_seen_ts = excluded.last_seen_ts`, deviceRow{
		UserID:      d.UserID,
		DeviceID:    d.DeviceID,
		TokenHash:   internal.HashToken(d.Token),
		DisplayName: d.DisplayName,
		LastSeenIP:  d.LastSeenIP,
		LastSeenTS:  d.LastSeenTS,
	})
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// UpdateLastSeen returns hsAuth.ErrDeviceNotFound when the credential has
// been revoked.
func (s *Store) UpdateLastSeen(ctx context.Context, token, ip string, ts int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE hsauth_devices SET last_seen_ip = ?, last_seen_ts = ? WHERE token_hash = ?`),
		ip, ts, internal.HashToken(token))
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	if n == 0 {
		return hsAuth.ErrDeviceNotFound
	}
	return nil
}

// DeleteToken revokes a credential. Revoking an unknown credential is not an error.
func (s *Store) DeleteToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM hsauth_devices WHERE token_hash = ?`), internal.HashToken(token))
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID, deviceID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM hsauth_devices WHERE user_id = ? AND device_id = ?`), userID, deviceID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

func (s *Store) ListForUser(ctx context.Context, userID string) ([]hsAuth.Device, error) {
	var rows []deviceRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+deviceColumns+` FROM hsauth_devices WHERE user_id = ? ORDER BY device_id`), userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	out := make([]hsAuth.Device, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.device())
	}
	return out, nil
}

func (s *Store) getDevice(ctx context.Context, query string, args ...any) (deviceRow, error) {
	var row deviceRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deviceRow{}, hsAuth.ErrDeviceNotFound
		}
		return deviceRow{}, fmt.Errorf("get device: %w", err)
	}
	return row, nil
}
