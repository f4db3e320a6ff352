package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"printwatch/common/config"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	memoryPath        = ":memory:"
	defaultDBFile     = "printwatch.db"
	defaultLogLimit   = 100
	statusOffline     = "OFFLINE"
	postgresPingLimit = 10 * time.Second
)

// Store persists printer snapshots and maintenance logs in SQLite or
// PostgreSQL.
type Store struct {
	db      *sql.DB
	dialect Dialect
	path    string
	now     func() time.Time
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Open selects the backend from cfg. An empty sqlite path resolves to
// printwatch.db under dataDir, or an in-memory database when dataDir is
// also empty.
func Open(ctx context.Context, cfg config.DatabaseConfig, dataDir string) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		path := cfg.Path
		if path == "" {
			path = memoryPath
			if dataDir != "" {
				path = filepath.Join(dataDir, defaultDBFile)
			}
		}
		return NewSQLiteStore(ctx, path)
	case "postgres", "postgresql", "pgx":
		return NewPostgresStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewSQLiteStore opens (creating if needed) a SQLite database. A file whose
// schema cannot be initialized is rotated aside once and recreated.
func NewSQLiteStore(ctx context.Context, dbPath string) (*Store, error) {
	s, err := openSQLite(ctx, dbPath)
	if err == nil || dbPath == memoryPath {
		return s, err
	}

	logWarn("Database schema initialization failed, rotating database", "path", dbPath, "error", err)
	backupPath, rotateErr := RotateDatabase(dbPath)
	if rotateErr != nil {
		return nil, fmt.Errorf("failed to initialize schema and unable to rotate database: %w (rotation error: %v)", err, rotateErr)
	}
	logWarn("Database rotated, starting with a fresh file", "backupPath", backupPath)
	return openSQLite(ctx, dbPath)
}

func openSQLite(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryPath {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, dialect: &SQLiteDialect{}, path: dbPath, now: defaultNow}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logDebug("Opened SQLite database", "path", dbPath)
	return s, nil
}

// NewPostgresStore connects through the pgx stdlib driver.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres requires a dsn")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetimeSecs > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSecs) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresPingLimit)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{db: db, dialect: &PostgresDialect{}, now: defaultNow}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logInfo("Opened PostgreSQL database")
	return s, nil
}

func defaultNow() time.Time {
	// postgres keeps microseconds
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *Store) initSchema(ctx context.Context) error {
	ts := s.dialect.TimestampType()
	statements := []string{
		`CREATE TABLE IF NOT EXISTS printers (
			id TEXT PRIMARY KEY,
			ip TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			hostname TEXT NOT NULL DEFAULT '',
			serial TEXT NOT NULL DEFAULT '',
			firmware TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'OFFLINE',
			faults TEXT,
			levels TEXT,
			levels_unavailable INTEGER NOT NULL DEFAULT 0,
			cartridge_info TEXT,
			page_count INTEGER,
			last_status_update ` + ts + ` NOT NULL,
			last_maintenance ` + ts + `,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_printers_ip ON printers(ip)`,
		`CREATE TABLE IF NOT EXISTS maintenance_logs (
			id TEXT PRIMARY KEY,
			printer_id TEXT NOT NULL REFERENCES printers(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			performed_by TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_maintenance_logs_printer ON maintenance_logs(printer_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize %s schema: %w", s.dialect.Name(), err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the SQLite file path; empty for PostgreSQL.
func (s *Store) Path() string { return s.path }

// Dialect returns the active SQL dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) rebind(q string) string { return Rebind(s.dialect, q) }

const printerColumns = `id, ip, brand, model, hostname, serial, firmware, status, faults, levels,
	levels_unavailable, cartridge_info, page_count, last_status_update, last_maintenance, created_at`

// RecordSnapshot stores the result of a successful query and returns the
// maintenance entries derived from the previous snapshot. The previous
// snapshot is looked up by previousIP when the device moved, else by p.IP.
// p.ID and p.CreatedAt are filled in.
func (s *Store) RecordSnapshot(ctx context.Context, p *Printer, previousIP string) ([]MaintenanceLog, error) {
	if p == nil || p.IP == "" {
		return nil, errors.New("snapshot requires an ip")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	prev, err := s.lookupPrevious(ctx, tx, p.IP, previousIP)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now()
	if p.LastStatusUpdate.IsZero() {
		p.LastStatusUpdate = now
	}
	var logs []MaintenanceLog
	if prev != nil {
		p.ID = prev.ID
		p.CreatedAt = prev.CreatedAt
		p.LastMaintenance = prev.LastMaintenance
		logs = DetectChanges(prev, p)
	} else {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	}
	if len(logs) > 0 {
		p.LastMaintenance = &now
	}

	if err := s.upsertPrinter(ctx, tx, p); err != nil {
		return nil, err
	}
	for i := range logs {
		logs[i].ID = uuid.NewString()
		logs[i].PrinterID = p.ID
		logs[i].CreatedAt = now
		if err := s.insertLog(ctx, tx, &logs[i]); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}

	for _, l := range logs {
		logInfo("Maintenance entry recorded", "printer", p.ID, "ip", p.IP, "type", l.Type, "color", l.Color)
	}
	return logs, nil
}

func (s *Store) lookupPrevious(ctx context.Context, q queryer, ip, previousIP string) (*Printer, error) {
	if previousIP != "" && previousIP != ip {
		prev, err := s.getBy(ctx, q, "ip", previousIP)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return prev, err
		}
	}
	return s.getBy(ctx, q, "ip", ip)
}

func (s *Store) upsertPrinter(ctx context.Context, q queryer, p *Printer) error {
	faults, levels, cartridges, err := encodeJSONColumns(p)
	if err != nil {
		return err
	}
	var pageCount sql.NullInt64
	if p.PageCount != nil {
		pageCount = sql.NullInt64{Int64: int64(*p.PageCount), Valid: true}
	}
	var lastMaint sql.NullTime
	if p.LastMaintenance != nil {
		lastMaint = sql.NullTime{Time: *p.LastMaintenance, Valid: true}
	}

	query := `INSERT INTO printers (` + printerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		` + s.dialect.UpsertConflict("id") + `
			ip = excluded.ip,
			brand = excluded.brand,
			model = excluded.model,
			hostname = excluded.hostname,
			serial = excluded.serial,
			firmware = excluded.firmware,
			status = excluded.status,
			faults = excluded.faults,
			levels = excluded.levels,
			levels_unavailable = excluded.levels_unavailable,
			cartridge_info = excluded.cartridge_info,
			page_count = excluded.page_count,
			last_status_update = excluded.last_status_update,
			last_maintenance = excluded.last_maintenance`
	_, err = q.ExecContext(ctx, s.rebind(query),
		p.ID, p.IP, p.Brand, p.Model, p.Hostname, p.Serial, p.Firmware, p.Status,
		faults, levels, boolToInt(p.LevelsUnavailable), cartridges, pageCount,
		p.LastStatusUpdate, lastMaint, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert printer %s: %w", p.IP, err)
	}
	return nil
}

// UpdateSupplies refreshes levels and status for the printer at ip.
func (s *Store) UpdateSupplies(ctx context.Context, ip string, levels map[string]int, status string) error {
	b, err := json.Marshal(levels)
	if err != nil {
		return fmt.Errorf("encode levels: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE printers SET levels = ?, status = ?, last_status_update = ? WHERE ip = ?`),
		string(b), status, s.now(), ip)
	if err != nil {
		return fmt.Errorf("update supplies for %s: %w", ip, err)
	}
	return requireRow(res)
}

// MarkOffline flags the printer at ip as OFFLINE without touching its last
// known readings.
func (s *Store) MarkOffline(ctx context.Context, ip string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE printers SET status = ? WHERE ip = ?`), statusOffline, ip)
	if err != nil {
		return fmt.Errorf("mark %s offline: %w", ip, err)
	}
	return requireRow(res)
}

// GetPrinter returns the printer with the given id.
func (s *Store) GetPrinter(ctx context.Context, id string) (*Printer, error) {
	return s.getBy(ctx, s.db, "id", id)
}

// GetPrinterByIP returns the most recently updated printer at ip.
func (s *Store) GetPrinterByIP(ctx context.Context, ip string) (*Printer, error) {
	return s.getBy(ctx, s.db, "ip", ip)
}

func (s *Store) getBy(ctx context.Context, q queryer, column, value string) (*Printer, error) {
	query := `SELECT ` + printerColumns + ` FROM printers WHERE ` + column + ` = ?
		ORDER BY last_status_update DESC LIMIT 1`
	p, err := scanPrinter(q.QueryRowContext(ctx, s.rebind(query), value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get printer by %s: %w", column, err)
	}
	return p, nil
}

// ListPrinters returns all printers ordered by IP.
func (s *Store) ListPrinters(ctx context.Context) ([]*Printer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+printerColumns+` FROM printers ORDER BY ip`)
	if err != nil {
		return nil, fmt.Errorf("list printers: %w", err)
	}
	defer rows.Close()

	var out []*Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan printer: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddMaintenanceLog records a manual entry. ID and CreatedAt are assigned
// when empty.
func (s *Store) AddMaintenanceLog(ctx context.Context, l *MaintenanceLog) error {
	if _, err := s.GetPrinter(ctx, l.PrinterID); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin maintenance log: %w", err)
	}
	defer tx.Rollback()
	if err := s.insertLog(ctx, tx, l); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE printers SET last_maintenance = ? WHERE id = ?`), l.CreatedAt, l.PrinterID); err != nil {
		return fmt.Errorf("update last maintenance: %w", err)
	}
	return tx.Commit()
}

func (s *Store) insertLog(ctx context.Context, q queryer, l *MaintenanceLog) error {
	_, err := q.ExecContext(ctx, s.rebind(`INSERT INTO maintenance_logs
		(id, printer_id, type, color, description, notes, performed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		l.ID, l.PrinterID, l.Type, l.Color, l.Description, l.Notes, l.PerformedBy, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert maintenance log: %w", err)
	}
	return nil
}

// ListMaintenanceLogs returns the newest entries for a printer; limit <= 0
// means 100.
func (s *Store) ListMaintenanceLogs(ctx context.Context, printerID string, limit int) ([]MaintenanceLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(fmt.Sprintf(`SELECT id, printer_id, type, color, description, notes, performed_by, created_at
		FROM maintenance_logs WHERE printer_id = ? ORDER BY created_at DESC, id LIMIT %d`, limit)), printerID)
	if err != nil {
		return nil, fmt.Errorf("list maintenance logs: %w", err)
	}
	defer rows.Close()

	var out []MaintenanceLog
	for rows.Next() {
		var l MaintenanceLog
		if err := rows.Scan(&l.ID, &l.PrinterID, &l.Type, &l.Color, &l.Description, &l.Notes, &l.PerformedBy, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan maintenance log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrinter(row rowScanner) (*Printer, error) {
	var (
		p                     Printer
		faults, levels, carts sql.NullString
		unavailable           int64
		pageCount             sql.NullInt64
		lastMaint             sql.NullTime
	)
	err := row.Scan(&p.ID, &p.IP, &p.Brand, &p.Model, &p.Hostname, &p.Serial, &p.Firmware, &p.Status,
		&faults, &levels, &unavailable, &carts, &pageCount, &p.LastStatusUpdate, &lastMaint, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.LevelsUnavailable = unavailable != 0
	if faults.Valid && faults.String != "" {
		if err := json.Unmarshal([]byte(faults.String), &p.Faults); err != nil {
			return nil, fmt.Errorf("decode faults: %w", err)
		}
	}
	if levels.Valid && levels.String != "" {
		if err := json.Unmarshal([]byte(levels.String), &p.Levels); err != nil {
			return nil, fmt.Errorf("decode levels: %w", err)
		}
	}
	if carts.Valid && carts.String != "" {
		if err := json.Unmarshal([]byte(carts.String), &p.CartridgeInfo); err != nil {
			return nil, fmt.Errorf("decode cartridge info: %w", err)
		}
	}
	if pageCount.Valid {
		n := int(pageCount.Int64)
		p.PageCount = &n
	}
	if lastMaint.Valid {
		t := lastMaint.Time
		p.LastMaintenance = &t
	}
	return &p, nil
}

func encodeJSONColumns(p *Printer) (faults, levels, cartridges sql.NullString, err error) {
	enc := func(v interface{}, empty bool) (sql.NullString, error) {
		if empty {
			return sql.NullString{}, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return sql.NullString{}, err
		}
		return sql.NullString{String: string(b), Valid: true}, nil
	}
	if faults, err = enc(p.Faults, len(p.Faults) == 0); err != nil {
		return
	}
	if levels, err = enc(p.Levels, p.Levels == nil); err != nil {
		return
	}
	cartridges, err = enc(p.CartridgeInfo, len(p.CartridgeInfo) == 0)
	return
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
