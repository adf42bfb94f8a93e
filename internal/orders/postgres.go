package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/chauffeur-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Create(ctx context.Context, o *models.Order) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders(
			id, customer_id, status, driver_id,
			start_location, start_lon, start_lat,
			end_location, end_lon, end_lat,
			expect_distance, expect_amount, expect_time, favour_fee,
			create_time
		) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.CustomerID, int(o.Status), nullStr(o.DriverID),
		o.StartLocation, o.StartPoint.Lon, o.StartPoint.Lat,
		o.EndLocation, o.EndPoint.Lon, o.EndPoint.Lat,
		o.ExpectDistance, o.ExpectAmount, o.ExpectTime, o.FavourFee,
		o.CreateTime)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, orderID string) (*models.Order, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, driver_id,
		       start_location, start_lon, start_lat,
		       end_location, end_lon, end_lat,
		       expect_distance, expect_amount, expect_time, favour_fee,
		       real_distance, real_amount, create_time, accept_time
		FROM orders WHERE id=$1`, orderID)

	var o models.Order
	var status int
	var driverID sql.NullString
	var realDistance, realAmount sql.NullFloat64
	var acceptTime sql.NullTime
	err := row.Scan(&o.ID, &o.CustomerID, &status, &driverID,
		&o.StartLocation, &o.StartPoint.Lon, &o.StartPoint.Lat,
		&o.EndLocation, &o.EndPoint.Lon, &o.EndPoint.Lat,
		&o.ExpectDistance, &o.ExpectAmount, &o.ExpectTime, &o.FavourFee,
		&realDistance, &realAmount, &o.CreateTime, &acceptTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if driverID.Valid {
		o.DriverID = driverID.String
	}
	if realDistance.Valid {
		o.RealDistance = realDistance.Float64
	}
	if realAmount.Valid {
		o.RealAmount = realAmount.Float64
	}
	if acceptTime.Valid {
		o.AcceptTime = acceptTime.Time
	}
	return &o, nil
}

func (p *PostgresStore) GetStatus(ctx context.Context, orderID string) (models.OrderStatus, error) {
	var status int
	err := p.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StatusNullOrder, nil
	}
	if err != nil {
		return models.StatusNullOrder, err
	}
	return models.OrderStatus(status), nil
}

// Transition performs the optimistic conditional update. The WHERE
// clause on the expected status makes concurrent writers race safely:
// at most one sees rows affected = 1.
func (p *PostgresStore) Transition(ctx context.Context, orderID string, from, to models.OrderStatus, upd Update) (bool, error) {
	query := `
		UPDATE orders SET status=$1,
			driver_id = COALESCE(NULLIF($2,''), driver_id),
			accept_time = COALESCE($3, accept_time),
			real_amount = COALESCE($4, real_amount),
			real_distance = COALESCE($5, real_distance)
		WHERE id=$6 AND status=$7`
	args := []interface{}{int(to), upd.SetDriverID, upd.AcceptTime, upd.RealAmount, upd.RealDistance, orderID, int(from)}
	if upd.GuardDriverID != "" {
		query += ` AND driver_id=$8`
		args = append(args, upd.GuardDriverID)
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (p *PostgresStore) AppendStatusLog(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO order_status_log(order_id, status, operate_time) VALUES($1,$2,$3)`,
		orderID, int(status), at)
	return err
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
