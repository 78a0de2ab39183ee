package chatlog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Dialect selects the SQL flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDSN maps a CHATLOG_DSN value to a driver name, dialect and driver DSN.
// postgres:// and postgresql:// URLs go to pgx; sqlite://path (or
// sqlite://:memory:) goes to modernc sqlite.
func ParseDSN(dsn string) (driver string, dialect Dialect, conn string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", Postgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", "", errors.New("chatlog: sqlite dsn has no path")
		}
		return "sqlite", SQLite, path, nil
	default:
		return "", "", "", fmt.Errorf("chatlog: unsupported dsn scheme in %q", redact(dsn))
	}
}

func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	return "..."
}

// SQLStore archives records in a chat_messages table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens dsn, applies pending migrations and returns the store.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	driver, dialect, conn, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, fmt.Errorf("chatlog: open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// One connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("chatlog: ping %s: %w", dialect, err)
	}
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database that is already migrated.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) migrator() (*migrate.Migrate, error) {
	sub, err := fs.Sub(migrationsFS, "migrations/"+string(s.dialect))
	if err != nil {
		return nil, fmt.Errorf("chatlog: migrations for %s: %w", s.dialect, err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("chatlog: migration source: %w", err)
	}
	var drv database.Driver
	switch s.dialect {
	case Postgres:
		drv, err = postgres.WithInstance(s.db, &postgres.Config{})
	case SQLite:
		drv, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("chatlog: %s migration driver: %w", s.dialect, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(s.dialect), drv)
	if err != nil {
		return nil, fmt.Errorf("chatlog: create migrate instance: %w", err)
	}
	return m, nil
}

// Migrate applies every pending migration. It is safe to run repeatedly.
func (s *SQLStore) Migrate() error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("chatlog schema is up to date", slog.String("component", "chatlog_migrate"))
			return nil
		}
		return fmt.Errorf("chatlog: run migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		slog.Warn("could not determine chatlog migration version", slog.Any("err", err), slog.String("component", "chatlog_migrate"))
		return nil
	}
	if dirty {
		return fmt.Errorf("chatlog: database is dirty at version %d - manual intervention required", version)
	}
	slog.Info("chatlog migrations applied",
		slog.Uint64("version", uint64(version)),
		slog.String("component", "chatlog_migrate"))
	return nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg encodes t for the dialect: TIMESTAMPTZ on Postgres, unix
// milliseconds on SQLite.
func (s *SQLStore) timeArg(t time.Time) any {
	if s.dialect == SQLite {
		return t.UTC().UnixMilli()
	}
	return t.UTC()
}

// Write applies a batch in one transaction. Re-archiving an existing message
// is a no-op.
func (s *SQLStore) Write(ctx context.Context, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chatlog: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO chat_messages
		(channel_id, id, channel_login, kind, author_id, author_login, context, body, recent, deleted, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel_id, id) DO NOTHING`))
	if err != nil {
		return fmt.Errorf("chatlog: prepare insert: %w", err)
	}
	defer insert.Close()

	del, err := tx.PrepareContext(ctx, s.rebind(`UPDATE chat_messages SET deleted = ?, deleted_at = ?
		WHERE channel_id = ? AND id = ?`))
	if err != nil {
		return fmt.Errorf("chatlog: prepare delete: %w", err)
	}
	defer del.Close()

	for _, r := range batch {
		switch r.Op {
		case OpDelete:
			_, err = del.ExecContext(ctx, true, s.timeArg(r.Timestamp), r.ChannelID, r.ID)
		default:
			_, err = insert.ExecContext(ctx, r.ChannelID, r.ID, r.ChannelLogin, r.Kind, r.AuthorID, r.AuthorLogin,
				r.Context, r.Text, r.Recent, r.Deleted, s.timeArg(r.Timestamp))
		}
		if err != nil {
			return fmt.Errorf("chatlog: write %s %s: %w", r.Op, r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chatlog: commit: %w", err)
	}
	return nil
}

// QueryOpts filters Query. Zero values mean no filter; Limit defaults to 1000.
type QueryOpts struct {
	Channel string
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Query returns archived messages oldest first.
func (s *SQLStore) Query(ctx context.Context, q QueryOpts) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if q.Channel != "" {
		where = append(where, "channel_login = ?")
		args = append(args, strings.ToLower(q.Channel))
	}
	if !q.Since.IsZero() {
		where = append(where, "sent_at >= ?")
		args = append(args, s.timeArg(q.Since))
	}
	if !q.Until.IsZero() {
		where = append(where, "sent_at < ?")
		args = append(args, s.timeArg(q.Until))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	query := `SELECT channel_id, id, channel_login, kind, author_id, author_login, context, body, recent, deleted, sent_at
		FROM chat_messages`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sent_at, id LIMIT " + strconv.Itoa(limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("chatlog: query: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()

	var out []Record
	for rows.Next() {
		r := Record{Op: OpAdd}
		var sentPG time.Time
		var sentMS int64
		sent := any(&sentPG)
		if s.dialect == SQLite {
			sent = &sentMS
		}
		if err := rows.Scan(&r.ChannelID, &r.ID, &r.ChannelLogin, &r.Kind, &r.AuthorID, &r.AuthorLogin,
			&r.Context, &r.Text, &r.Recent, &r.Deleted, sent); err != nil {
			return nil, fmt.Errorf("chatlog: scan: %w", err)
		}
		if s.dialect == SQLite {
			r.Timestamp = time.UnixMilli(sentMS).UTC()
		} else {
			r.Timestamp = sentPG.UTC()
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatlog: iterate: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
