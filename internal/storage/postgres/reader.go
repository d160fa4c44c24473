package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"example.com/ltvpipeline/internal/domain"
)

func (db *DB) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	var c domain.Customer
	row := db.Pool.QueryRow(ctx,
		"SELECT customer_id, event_time, last_name, adr_city, adr_state FROM customer WHERE customer_id=$1",
		customerID)
	if err := row.Scan(&c.CustomerID, &c.EventTime, &c.LastName, &c.City, &c.State); err != nil {
		return domain.Customer{}, mapError(err)
	}
	c.EventTime = c.EventTime.UTC()
	return c, nil
}

func (db *DB) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	var ok bool
	err := db.Pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM customer WHERE customer_id=$1)", customerID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("customer exists: %w", err)
	}
	return ok, nil
}

func (db *DB) ListCustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, "SELECT customer_id FROM customer ORDER BY customer_id COLLATE \"C\"")
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan customer id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (db *DB) GetSiteVisit(ctx context.Context, pageID string) (domain.SiteVisit, error) {
	var v domain.SiteVisit
	row := db.Pool.QueryRow(ctx,
		"SELECT page_id, event_time, customer_id, tags FROM site_visit WHERE page_id=$1", pageID)
	if err := row.Scan(&v.PageID, &v.EventTime, &v.CustomerID, &v.Tags); err != nil {
		return domain.SiteVisit{}, mapError(err)
	}
	v.EventTime = v.EventTime.UTC()
	return v, nil
}

func (db *DB) GetImage(ctx context.Context, imageID string) (domain.Image, error) {
	var img domain.Image
	row := db.Pool.QueryRow(ctx,
		"SELECT image_id, event_time, customer_id, camera_make, camera_model FROM image_uploaded WHERE image_id=$1",
		imageID)
	if err := row.Scan(&img.ImageID, &img.EventTime, &img.CustomerID, &img.CameraMake, &img.CameraModel); err != nil {
		return domain.Image{}, mapError(err)
	}
	img.EventTime = img.EventTime.UTC()
	return img, nil
}

func (db *DB) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var (
		o      domain.Order
		amount string
	)
	row := db.Pool.QueryRow(ctx,
		"SELECT order_id, event_time, customer_id, total_amount::text FROM orders WHERE order_id=$1", orderID)
	if err := row.Scan(&o.OrderID, &o.EventTime, &o.CustomerID, &amount); err != nil {
		return domain.Order{}, mapError(err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s amount: %w", orderID, err)
	}
	o.TotalAmount = d
	o.EventTime = o.EventTime.UTC()
	return o, nil
}

func (db *DB) Activity(ctx context.Context, customerID string) (domain.Activity, error) {
	a := domain.Activity{CustomerID: customerID}

	var (
		first, last *time.Time
		total       string
	)
	row := db.Pool.QueryRow(ctx, `
SELECT
  v.cnt, v.first_visit, v.last_visit, o.cnt, o.total::text
FROM
  (SELECT COUNT(*)::bigint AS cnt, MIN(event_time) AS first_visit, MAX(event_time) AS last_visit
     FROM site_visit WHERE customer_id=$1) v,
  (SELECT COUNT(*)::bigint AS cnt, COALESCE(SUM(total_amount), 0) AS total
     FROM orders WHERE customer_id=$1) o`, customerID)
	if err := row.Scan(&a.VisitCount, &first, &last, &a.OrderCount, &total); err != nil {
		return a, fmt.Errorf("scan activity: %w", err)
	}
	if first != nil {
		a.FirstVisit = first.UTC()
	}
	if last != nil {
		a.LastVisit = last.UTC()
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return a, fmt.Errorf("%w: order total %q", domain.ErrNonNumeric, total)
	}
	a.OrderTotal = d
	return a, nil
}

func (db *DB) ListLTV(ctx context.Context) ([]domain.LTVRecord, error) {
	rows, err := db.Pool.Query(ctx, `
SELECT customer_id, visit_count, total_expenditure::text, expenditure_per_visit, visits_per_week, weeks_active, clv
FROM customer_ltv
ORDER BY customer_id COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("list ltv: %w", err)
	}
	defer rows.Close()

	var out []domain.LTVRecord
	for rows.Next() {
		var (
			r     domain.LTVRecord
			total string
		)
		if err := rows.Scan(&r.CustomerID, &r.VisitCount, &total, &r.ExpenditurePerVisit, &r.VisitsPerWeek, &r.WeeksActive, &r.CLV); err != nil {
			return nil, fmt.Errorf("scan ltv: %w", err)
		}
		if r.TotalExpenditure, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("ltv %s expenditure: %w", r.CustomerID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) Counts(ctx context.Context) (domain.Counts, error) {
	var c domain.Counts
	row := db.Pool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM customer)::bigint,
  (SELECT COUNT(*) FROM site_visit)::bigint,
  (SELECT COUNT(*) FROM image_uploaded)::bigint,
  (SELECT COUNT(*) FROM orders)::bigint,
  (SELECT COUNT(*) FROM customer_ltv)::bigint`)
	if err := row.Scan(&c.Customers, &c.SiteVisits, &c.Images, &c.Orders, &c.LTV); err != nil {
		return c, fmt.Errorf("scan counts: %w", err)
	}
	return c, nil
}
