package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openamphion/amphion/pkg/amphorae"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// GetAmphora retrieves an amphora snapshot by ID.
func (s *SQLiteStore) GetAmphora(ctx context.Context, id string) (*amphorae.Amphora, error) {
	query := `
		SELECT id, COALESCE(load_balancer_id, ''), compute_id, lb_network_ip,
		       status, role, vrrp_interface, vrrp_ip, created_at, updated_at
		FROM amphora
		WHERE id = ?
	`

	amp := &amphorae.Amphora{}
	var vrrpInterface sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&amp.ID,
		&amp.LoadBalancerID,
		&amp.ComputeID,
		&amp.LBNetworkIP,
		&amp.Status,
		&amp.Role,
		&vrrpInterface,
		&amp.VRRPIP,
		&amp.CreatedAt,
		&amp.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("amphora %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get amphora: %w", err)
	}

	if vrrpInterface.Valid {
		amp.VRRPInterface = &vrrpInterface.String
	}
	return amp, nil
}

// UpdateAmphora applies field changes to an amphora record. Only the fields
// named in changes are written, so concurrent writers touching other fields
// are not clobbered.
func (s *SQLiteStore) UpdateAmphora(ctx context.Context, id string, changes AmphoraChanges) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if changes.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*changes.Status))
	}
	if changes.ClearVRRPInterface {
		sets = append(sets, "vrrp_interface = NULL")
	} else if changes.VRRPInterface != nil {
		sets = append(sets, "vrrp_interface = ?")
		args = append(args, *changes.VRRPInterface)
	}

	args = append(args, id)
	query := "UPDATE amphora SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update amphora: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("amphora %s: %w", id, ErrNotFound)
	}

	return nil
}

// GetListener retrieves a listener snapshot by ID.
func (s *SQLiteStore) GetListener(ctx context.Context, id string) (*amphorae.Listener, error) {
	query := `
		SELECT id, load_balancer_id, provisioning_status, protocol, port,
		       created_at, updated_at
		FROM listener
		WHERE id = ?
	`

	listener := &amphorae.Listener{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&listener.ID,
		&listener.LoadBalancerID,
		&listener.ProvisioningStatus,
		&listener.Protocol,
		&listener.Port,
		&listener.CreatedAt,
		&listener.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listener %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listener: %w", err)
	}

	return listener, nil
}

// UpdateListener applies field changes to a listener record.
func (s *SQLiteStore) UpdateListener(ctx context.Context, id string, changes ListenerChanges) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if changes.ProvisioningStatus != nil {
		sets = append(sets, "provisioning_status = ?")
		args = append(args, string(*changes.ProvisioningStatus))
	}

	args = append(args, id)
	query := "UPDATE listener SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update listener: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("listener %s: %w", id, ErrNotFound)
	}

	return nil
}

// GetLoadBalancer retrieves a load balancer snapshot by ID, including its
// listeners and amphorae in creation order.
func (s *SQLiteStore) GetLoadBalancer(ctx context.Context, id string) (*amphorae.LoadBalancer, error) {
	query := `
		SELECT id, provisioning_status, topology, vip_address, created_at, updated_at
		FROM load_balancer
		WHERE id = ?
	`

	lb := &amphorae.LoadBalancer{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&lb.ID,
		&lb.ProvisioningStatus,
		&lb.Topology,
		&lb.VIPAddress,
		&lb.CreatedAt,
		&lb.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load balancer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get load balancer: %w", err)
	}

	if lb.Listeners, err = s.listenersFor(ctx, id); err != nil {
		return nil, err
	}
	if lb.Amphorae, err = s.amphoraeFor(ctx, id); err != nil {
		return nil, err
	}

	return lb, nil
}

// UpdateLoadBalancer applies field changes to a load balancer record.
func (s *SQLiteStore) UpdateLoadBalancer(ctx context.Context, id string, changes LoadBalancerChanges) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if changes.ProvisioningStatus != nil {
		sets = append(sets, "provisioning_status = ?")
		args = append(args, string(*changes.ProvisioningStatus))
	}

	args = append(args, id)
	query := "UPDATE load_balancer SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update load balancer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("load balancer %s: %w", id, ErrNotFound)
	}

	return nil
}

func (s *SQLiteStore) listenersFor(ctx context.Context, lbID string) ([]amphorae.Listener, error) {
	query := `
		SELECT id, load_balancer_id, provisioning_status, protocol, port,
		       created_at, updated_at
		FROM listener
		WHERE load_balancer_id = ?
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, lbID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listeners: %w", err)
	}
	defer rows.Close()

	listeners := []amphorae.Listener{}
	for rows.Next() {
		var l amphorae.Listener
		if err := rows.Scan(&l.ID, &l.LoadBalancerID, &l.ProvisioningStatus,
			&l.Protocol, &l.Port, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listener: %w", err)
		}
		listeners = append(listeners, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listeners: %w", err)
	}

	return listeners, nil
}

func (s *SQLiteStore) amphoraeFor(ctx context.Context, lbID string) ([]amphorae.Amphora, error) {
	query := `
		SELECT id, COALESCE(load_balancer_id, ''), compute_id, lb_network_ip,
		       status, role, vrrp_interface, vrrp_ip, created_at, updated_at
		FROM amphora
		WHERE load_balancer_id = ?
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, lbID)
	if err != nil {
		return nil, fmt.Errorf("failed to list amphorae: %w", err)
	}
	defer rows.Close()

	amps := []amphorae.Amphora{}
	for rows.Next() {
		var amp amphorae.Amphora
		var vrrpInterface sql.NullString
		if err := rows.Scan(&amp.ID, &amp.LoadBalancerID, &amp.ComputeID,
			&amp.LBNetworkIP, &amp.Status, &amp.Role, &vrrpInterface,
			&amp.VRRPIP, &amp.CreatedAt, &amp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan amphora: %w", err)
		}
		if vrrpInterface.Valid {
			amp.VRRPInterface = &vrrpInterface.String
		}
		amps = append(amps, amp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate amphorae: %w", err)
	}

	return amps, nil
}

// CreateLoadBalancer inserts a load balancer record. Provisioning of new
// entities normally happens outside this core; the insert exists for tooling
// and tests.
func (s *SQLiteStore) CreateLoadBalancer(ctx context.Context, lb *amphorae.LoadBalancer) error {
	query := `
		INSERT INTO load_balancer (id, provisioning_status, topology, vip_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, lb.ID, string(lb.ProvisioningStatus),
		string(lb.Topology), lb.VIPAddress, now, now)
	if err != nil {
		return fmt.Errorf("failed to create load balancer: %w", err)
	}
	return nil
}

// CreateListener inserts a listener record.
func (s *SQLiteStore) CreateListener(ctx context.Context, listener *amphorae.Listener) error {
	query := `
		INSERT INTO listener (id, load_balancer_id, provisioning_status, protocol, port, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, listener.ID, listener.LoadBalancerID,
		string(listener.ProvisioningStatus), listener.Protocol, listener.Port, now, now)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	return nil
}

// CreateAmphora inserts an amphora record.
func (s *SQLiteStore) CreateAmphora(ctx context.Context, amp *amphorae.Amphora) error {
	query := `
		INSERT INTO amphora (id, load_balancer_id, compute_id, lb_network_ip, status, role, vrrp_interface, vrrp_ip, created_at, updated_at)
		VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query, amp.ID, amp.LoadBalancerID,
		amp.ComputeID, amp.LBNetworkIP, string(amp.Status), amp.Role,
		amp.VRRPInterface, amp.VRRPIP, now, now)
	if err != nil {
		return fmt.Errorf("failed to create amphora: %w", err)
	}
	return nil
}
