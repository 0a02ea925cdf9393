// Package storage handles database connections, schema migrations, and data operations using SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/a2sprobe/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

const serverColumns = `ip, port, variant, name, map, folder, game, version, keywords,
	server_type, environment, country_code, app_id, players, max_players, bots,
	visibility, vac, rules_hash, count, first_seen, last_seen`

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertServer inserts a server or refreshes an existing one, keeping its
// first seen time and rules hash, and increments the probe count.
// A blank country code does not overwrite a known one.
func (r *Repository) UpsertServer(s models.Server) error {
	query := `
	INSERT INTO servers (
		ip, port, variant, name, map, folder, game, version, keywords,
		server_type, environment, country_code, app_id, players, max_players, bots,
		visibility, vac, count, first_seen, last_seen
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(ip, port) DO UPDATE SET
		count        = count + 1,
		last_seen    = excluded.last_seen,
		variant      = excluded.variant,
		name         = excluded.name,
		map          = excluded.map,
		folder       = excluded.folder,
		game         = excluded.game,
		version      = excluded.version,
		keywords     = excluded.keywords,
		server_type  = excluded.server_type,
		environment  = excluded.environment,
		app_id       = excluded.app_id,
		players      = excluded.players,
		max_players  = excluded.max_players,
		bots         = excluded.bots,
		visibility   = excluded.visibility,
		vac          = excluded.vac,
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE servers.country_code END;
	`

	_, err := r.db.Exec(query,
		s.IP, s.Port, s.Variant, s.Name, s.Map, s.Folder, s.Game, s.Version, s.Keywords,
		s.ServerType, s.Environment, s.CountryCode, s.AppID, s.Players, s.MaxPlayers, s.Bots,
		s.Visibility, s.VAC, s.FirstSeen.UTC(), s.LastSeen.UTC(),
	)

	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (models.Server, error) {
	var (
		s    models.Server
		hash int64
	)

	err := row.Scan(
		&s.IP, &s.Port, &s.Variant, &s.Name, &s.Map, &s.Folder, &s.Game, &s.Version, &s.Keywords,
		&s.ServerType, &s.Environment, &s.CountryCode, &s.AppID, &s.Players, &s.MaxPlayers, &s.Bots,
		&s.Visibility, &s.VAC, &hash, &s.Count, &s.FirstSeen, &s.LastSeen,
	)
	s.RulesHash = uint64(hash)

	return s, err
}

// GetServers retrieves all servers, most recently seen first.
func (r *Repository) GetServers() ([]models.Server, error) {
	rows, err := r.db.Query(`SELECT ` + serverColumns + ` FROM servers ORDER BY last_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

// GetServer retrieves one server with its rules. It returns nil when not found.
func (r *Repository) GetServer(ip string, port int) (*models.Server, error) {
	row := r.db.QueryRow(`SELECT `+serverColumns+` FROM servers WHERE ip = ? AND port = ?`, ip, port)

	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	if s.Rules, err = r.GetRules(ip, port); err != nil {
		return nil, err
	}

	return &s, nil
}

// GetRules returns the recorded rules of a server in name order.
func (r *Repository) GetRules(ip string, port int) ([]models.Rule, error) {
	rows, err := r.db.Query(`SELECT name, value FROM rules WHERE ip = ? AND port = ? ORDER BY name`, ip, port)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rules []models.Rule
	for rows.Next() {
		var rule models.Rule
		if err := rows.Scan(&rule.Name, &rule.Value); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// RulesHash fingerprints a rule set. Rules must be in name order.
func RulesHash(rules []models.Rule) uint64 {
	d := xxhash.New()
	for _, rule := range rules {
		_, _ = d.WriteString(rule.Name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(rule.Value)
		_, _ = d.Write([]byte{0})
	}

	return d.Sum64()
}

// SaveRules replaces the recorded rules of an existing server when their
// fingerprint changed. It reports whether anything was written.
func (r *Repository) SaveRules(ip string, port int, rules []models.Rule) (bool, error) {
	hash := int64(RulesHash(rules))

	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRow(`SELECT rules_hash FROM servers WHERE ip = ? AND port = ?`, ip, port).Scan(&current)
	if err != nil {
		return false, err
	}
	if current == hash {
		return false, nil
	}

	if _, err := tx.Exec(`DELETE FROM rules WHERE ip = ? AND port = ?`, ip, port); err != nil {
		return false, err
	}
	for _, rule := range rules {
		if _, err := tx.Exec(`INSERT INTO rules (ip, port, name, value) VALUES (?, ?, ?, ?)`,
			ip, port, rule.Name, rule.Value); err != nil {
			return false, err
		}
	}
	if _, err := tx.Exec(`UPDATE servers SET rules_hash = ? WHERE ip = ? AND port = ?`, hash, ip, port); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// DeleteServer removes a server and its rules.
func (r *Repository) DeleteServer(ip string, port int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM rules WHERE ip = ? AND port = ?`, ip, port); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM servers WHERE ip = ? AND port = ?`, ip, port); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteStale removes servers last seen before the given time, with their rules.
func (r *Repository) DeleteStale(before time.Time) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	before = before.UTC()
	if _, err := tx.Exec(`
		DELETE FROM rules WHERE EXISTS (
			SELECT 1 FROM servers s
			WHERE s.ip = rules.ip AND s.port = rules.port AND s.last_seen < ?
		)`, before); err != nil {
		return 0, err
	}

	res, err := tx.Exec(`DELETE FROM servers WHERE last_seen < ?`, before)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, tx.Commit()
}
