// Package pg persists the delivery-point registry in PostgreSQL. Single-point
// writes are version-guarded single statements; batch provisioning runs in a
// serializable transaction so the collision check and the inserts are one
// atomic unit.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mailpoint.org/internal/address"
	"mailpoint.org/internal/registry"
)

const pgErrUniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

var _ registry.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool defaults tuned for short row-level
// operations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. For tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const pointColumns = `address_code, region_name, zone_name, point_name, point_type,
	is_active, occupant_id, occupant_name, occupied_at, created_at, updated_at, version`

func (s *Store) Insert(ctx context.Context, p registry.DeliveryPoint) error {
	_, err := s.db.ExecContext(ctx, `
		insert into delivery_points
			(address_code, zone_prefix, region_name, zone_name, point_name, point_type, is_active)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, p.Code.String(), string(p.Code.ZonePrefix()), p.RegionName, p.ZoneName, p.PointName, string(p.Type), p.IsActive)
	if isUniqueViolation(err) {
		return registry.ErrConflict
	}
	return err
}

func (s *Store) Get(ctx context.Context, code address.Code) (registry.DeliveryPoint, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+pointColumns+`
		from delivery_points where address_code=$1
	`, code.String())
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.DeliveryPoint{}, registry.ErrNotFound
	}
	return p, err
}

func (s *Store) SetActive(ctx context.Context, code address.Code, active bool, expected int64) (registry.DeliveryPoint, error) {
	row := s.db.QueryRowContext(ctx, `
		update delivery_points
		set is_active=$3, version=version+1, updated_at=now()
		where address_code=$1 and version=$2
		returning `+pointColumns+`
	`, code.String(), expected, active)
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		err := s.diagnose(ctx, code, expected, false)
		if err == nil {
			// The guarded update lost a race; the caller re-reads and retries.
			err = registry.ErrStaleVersion
		}
		return registry.DeliveryPoint{}, err
	}
	return p, err
}

func (s *Store) Assign(ctx context.Context, code address.Code, occ registry.Occupancy, expected int64) (registry.DeliveryPoint, error) {
	row := s.db.QueryRowContext(ctx, `
		update delivery_points
		set occupant_id=$3, occupant_name=$4, occupied_at=$5, version=version+1, updated_at=now()
		where address_code=$1 and version=$2 and occupant_id is null
		returning `+pointColumns+`
	`, code.String(), expected, occ.OccupantID, occ.OccupantName, occ.OccupiedAt)
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		err := s.diagnose(ctx, code, expected, true)
		if err == nil {
			err = registry.ErrStaleVersion
		}
		return registry.DeliveryPoint{}, err
	}
	return p, err
}

func (s *Store) Vacate(ctx context.Context, code address.Code, expected int64) (registry.DeliveryPoint, error) {
	row := s.db.QueryRowContext(ctx, `
		update delivery_points
		set occupant_id=null, occupant_name=null, occupied_at=null, version=version+1, updated_at=now()
		where address_code=$1 and version=$2 and occupant_id is not null
		returning `+pointColumns+`
	`, code.String(), expected)
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		err := s.diagnose(ctx, code, expected, false)
		if err == nil {
			// Row exists at the expected version with no occupant.
			err = registry.ErrNotOccupied
		}
		return registry.DeliveryPoint{}, err
	}
	return p, err
}

func (s *Store) Delete(ctx context.Context, code address.Code) error {
	res, err := s.db.ExecContext(ctx, `delete from delivery_points where address_code=$1`, code.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, f registry.Filter, after string, limit int) ([]registry.DeliveryPoint, error) {
	where := []string{"address_code > $1"}
	args := []any{after}

	if f.Prefix != "" {
		args = append(args, string(f.Prefix)+"%")
		where = append(where, fmt.Sprintf("address_code like $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if f.Occupied != nil {
		if *f.Occupied {
			where = append(where, "occupant_id is not null")
		} else {
			where = append(where, "occupant_id is null")
		}
	}
	if f.TextSearch != "" {
		args = append(args, "%"+escapeLike(f.TextSearch)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(region_name ilike $%d or zone_name ilike $%d or point_name ilike $%d or coalesce(occupant_name,'') ilike $%d)",
			n, n, n, n))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		select `+pointColumns+`
		from delivery_points
		where %s
		order by address_code asc
		limit $%d
	`, strings.Join(where, " and "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.DeliveryPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) InsertBatch(ctx context.Context, pts []registry.DeliveryPoint) error {
	if len(pts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Collision check inside the transaction: concurrent overlapping batches
	// serialize here, the loser aborts.
	placeholders := make([]string, len(pts))
	args := make([]any, len(pts))
	for i, p := range pts {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = p.Code.String()
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		`select address_code from delivery_points where address_code in (%s)`,
		strings.Join(placeholders, ",")), args...)
	if err != nil {
		return err
	}
	var colliding []address.Code
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return err
		}
		code, err := address.Parse(raw)
		if err != nil {
			rows.Close()
			return err
		}
		colliding = append(colliding, code)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(colliding) > 0 {
		return &registry.PartialConflictError{Codes: colliding}
	}

	for _, p := range pts {
		if _, err := tx.ExecContext(ctx, `
			insert into delivery_points
				(address_code, zone_prefix, region_name, zone_name, point_name, point_type, is_active)
			values ($1,$2,$3,$4,$5,$6,$7)
		`, p.Code.String(), string(p.Code.ZonePrefix()), p.RegionName, p.ZoneName, p.PointName, string(p.Type), p.IsActive); err != nil {
			if isUniqueViolation(err) {
				return &registry.PartialConflictError{Codes: []address.Code{p.Code}}
			}
			return err
		}
	}
	return tx.Commit()
}

// diagnose explains a guarded update that matched no rows: missing row, stale
// version, or (for Assign) an occupied point. Returns nil when the row exists
// at the expected version, letting the caller pick the operation-specific
// error.
func (s *Store) diagnose(ctx context.Context, code address.Code, expected int64, assigning bool) error {
	var version int64
	var occupantID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		select version, occupant_id from delivery_points where address_code=$1
	`, code.String()).Scan(&version, &occupantID)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.ErrNotFound
	}
	if err != nil {
		return err
	}
	if version != expected {
		return registry.ErrStaleVersion
	}
	if assigning && occupantID.Valid {
		return registry.ErrAlreadyOccupied
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoint(row rowScanner) (registry.DeliveryPoint, error) {
	var (
		p            registry.DeliveryPoint
		rawCode      string
		pointType    string
		occupantID   sql.NullString
		occupantName sql.NullString
		occupiedAt   sql.NullTime
	)
	err := row.Scan(&rawCode, &p.RegionName, &p.ZoneName, &p.PointName, &pointType,
		&p.IsActive, &occupantID, &occupantName, &occupiedAt, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return registry.DeliveryPoint{}, err
	}
	code, err := address.Parse(rawCode)
	if err != nil {
		return registry.DeliveryPoint{}, err
	}
	p.Code = code
	p.Type = registry.PointType(pointType)
	if occupantID.Valid {
		p.Occupant = &registry.Occupancy{
			OccupantID:   occupantID.String,
			OccupantName: occupantName.String,
			OccupiedAt:   occupiedAt.Time,
		}
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
