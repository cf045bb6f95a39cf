package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("db: not found")

// ErrUsernameTaken is returned by Register for a duplicate username.
var ErrUsernameTaken = errors.New("db: username already exists")

// Auth is a credential row. Password holds the bcrypt hash.
type Auth struct {
	ID       int64
	Username string
	Password string
}

// Player is a persisted player row. Color keeps the alpha byte forced
// opaque at registration.
type Player struct {
	ID        int64
	AuthID    int64
	Nickname  string
	Color     int32
	BestScore int64
}

// AuthByUsername fetches the credential row for a username.
func (d *DB) AuthByUsername(ctx context.Context, username string) (*Auth, error) {
	var a Auth
	err := d.sql.QueryRowContext(ctx,
		d.rebind(`SELECT id, username, password FROM auth WHERE username = ?`),
		username,
	).Scan(&a.ID, &a.Username, &a.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying auth %q: %w", username, err)
	}
	return &a, nil
}

// PlayerByAuthID fetches the player row owned by an auth id.
func (d *DB) PlayerByAuthID(ctx context.Context, authID int64) (*Player, error) {
	var p Player
	err := d.sql.QueryRowContext(ctx,
		d.rebind(`SELECT id, auth_id, nickname, color, best_score FROM player WHERE auth_id = ?`),
		authID,
	).Scan(&p.ID, &p.AuthID, &p.Nickname, &p.Color, &p.BestScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying player for auth %d: %w", authID, err)
	}
	return &p, nil
}

// TopPlayersByBestScore returns up to n players ordered by best score
// descending.
func (d *DB) TopPlayersByBestScore(ctx context.Context, n int) ([]Player, error) {
	rows, err := d.sql.QueryContext(ctx,
		d.rebind(`SELECT id, auth_id, nickname, color, best_score FROM player ORDER BY best_score DESC LIMIT ?`),
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.AuthID, &p.Nickname, &p.Color, &p.BestScore); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leaderboard rows: %w", err)
	}
	return players, nil
}

// UpdatePlayerBestScore persists a new personal best. The update is
// conditional on the stored score being lower, so a concurrent session
// can never regress it.
func (d *DB) UpdatePlayerBestScore(ctx context.Context, playerID, score int64) error {
	_, err := d.sql.ExecContext(ctx,
		d.rebind(`UPDATE player SET best_score = ? WHERE id = ? AND best_score < ?`),
		score, playerID, score,
	)
	if err != nil {
		return fmt.Errorf("updating best score for player %d: %w", playerID, err)
	}
	return nil
}

// Register creates the auth and player rows for a new account inside
// one transaction. The caller validates the username and hashes the
// password; nickname is the username and color arrives alpha-forced.
func (d *DB) Register(ctx context.Context, username, passwordHash string, color int32) (*Player, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning register transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx,
		d.rebind(`SELECT id FROM auth WHERE username = ?`), username,
	).Scan(&existing)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking username %q: %w", username, err)
	}

	authID, err := d.insertReturningID(ctx, tx,
		`INSERT INTO auth (username, password) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting auth %q: %w", username, err)
	}

	playerID, err := d.insertReturningID(ctx, tx,
		`INSERT INTO player (auth_id, nickname, color) VALUES (?, ?, ?)`,
		authID, username, color,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting player for auth %d: %w", authID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing register transaction: %w", err)
	}

	return &Player{
		ID:       playerID,
		AuthID:   authID,
		Nickname: username,
		Color:    color,
	}, nil
}

// insertReturningID papers over the backends' id-return styles:
// RETURNING on postgres, LastInsertId on sqlite.
func (d *DB) insertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if d.driver == driverPostgres {
		var id int64
		err := tx.QueryRowContext(ctx, d.rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
