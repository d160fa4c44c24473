package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"example.com/ltvpipeline/internal/domain"
)

// setClause accumulates "col=$n" assignments with their arguments. Column
// names always come from code, never from event payloads.
type setClause struct {
	sets []string
	args []any
}

func (s *setClause) add(col string, v any) {
	s.args = append(s.args, v)
	s.sets = append(s.sets, fmt.Sprintf("%s=$%d", col, len(s.args)))
}

func (s *setClause) update(table, keyCol, key string) (string, []any) {
	args := append(s.args, key)
	sql := "UPDATE " + table + " SET " + strings.Join(s.sets, ", ") +
		fmt.Sprintf(" WHERE %s=$%d", keyCol, len(args))
	return sql, args
}

// insert runs a single-row INSERT ... ON CONFLICT DO NOTHING and reports a
// conflict as domain.ErrAlreadyExists.
func (db *DB) insert(ctx context.Context, sql string, args ...any) error {
	ct, err := db.Pool.Exec(ctx, sql+" ON CONFLICT DO NOTHING", args...)
	if err != nil {
		return mapError(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (db *DB) InsertCustomer(ctx context.Context, c domain.Customer) error {
	return db.insert(ctx,
		"INSERT INTO customer (customer_id, event_time, last_name, adr_city, adr_state) VALUES ($1,$2,$3,$4,$5)",
		c.CustomerID, c.EventTime, c.LastName, c.City, c.State)
}

func (db *DB) UpdateCustomer(ctx context.Context, customerID string, p domain.CustomerPatch) (int64, error) {
	if p.Empty() {
		return 0, nil
	}
	var sc setClause
	if p.EventTime != nil {
		sc.add("event_time", *p.EventTime)
	}
	if p.LastName != nil {
		sc.add("last_name", *p.LastName)
	}
	if p.City != nil {
		sc.add("adr_city", *p.City)
	}
	if p.State != nil {
		sc.add("adr_state", *p.State)
	}
	sql, args := sc.update("customer", "customer_id", customerID)
	ct, err := db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return ct.RowsAffected(), nil
}

func (db *DB) InsertSiteVisit(ctx context.Context, v domain.SiteVisit) error {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return db.insert(ctx,
		"INSERT INTO site_visit (page_id, event_time, customer_id, tags) VALUES ($1,$2,$3,$4)",
		v.PageID, v.EventTime, v.CustomerID, tags)
}

func (db *DB) InsertImage(ctx context.Context, img domain.Image) error {
	return db.insert(ctx,
		"INSERT INTO image_uploaded (image_id, event_time, customer_id, camera_make, camera_model) VALUES ($1,$2,$3,$4,$5)",
		img.ImageID, img.EventTime, img.CustomerID, img.CameraMake, img.CameraModel)
}

func (db *DB) InsertOrder(ctx context.Context, o domain.Order) error {
	return db.insert(ctx,
		"INSERT INTO orders (order_id, event_time, customer_id, total_amount) VALUES ($1,$2,$3,$4::numeric)",
		o.OrderID, o.EventTime, o.CustomerID, o.TotalAmount.String())
}

func (db *DB) UpdateOrder(ctx context.Context, orderID string, p domain.OrderPatch) (int64, error) {
	if p.Empty() {
		return 0, nil
	}
	var sc setClause
	if p.EventTime != nil {
		sc.add("event_time", *p.EventTime)
	}
	if p.TotalAmount != nil {
		sc.add("total_amount", p.TotalAmount.String())
		sc.sets[len(sc.sets)-1] += "::numeric"
	}
	sql, args := sc.update("orders", "order_id", orderID)
	ct, err := db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return ct.RowsAffected(), nil
}

// ReplaceLTV swaps the whole customer_ltv table in one transaction.
func (db *DB) ReplaceLTV(ctx context.Context, records []domain.LTVRecord) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM customer_ltv"); err != nil {
			return fmt.Errorf("clear ltv: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		b := &pgx.Batch{}
		for _, r := range records {
			b.Queue(`INSERT INTO customer_ltv
  (customer_id, visit_count, total_expenditure, expenditure_per_visit, visits_per_week, weeks_active, clv)
VALUES ($1,$2,$3::numeric,$4,$5,$6,$7)`,
				r.CustomerID, r.VisitCount, r.TotalExpenditure.String(),
				r.ExpenditurePerVisit, r.VisitsPerWeek, r.WeeksActive, r.CLV)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("insert ltv: %w", mapError(err))
		}
		return nil
	})
}
