package postgres

import (
	"context"
	"fmt"

	"github.com/frahmantamala/procure-to-pay/internal/report"
	"github.com/jmoiron/sqlx"
)

// ReportRepository runs the read-only aggregate queries behind the finance
// report directly over sqlx.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const totalsByStatusQuery = `
SELECT
	status,
	COUNT(*) AS request_count,
	COALESCE(SUM(amount), 0) AS total_amount
FROM purchase_requests
GROUP BY status
ORDER BY status`

const orderTotalsQuery = `
SELECT
	COUNT(*) AS order_count,
	COALESCE(SUM(total_amount), 0) AS total_value
FROM purchase_orders`

func (r *ReportRepository) TotalsByStatus(ctx context.Context) ([]report.StatusTotal, error) {
	var rows []report.StatusTotal
	if err := r.db.SelectContext(ctx, &rows, totalsByStatusQuery); err != nil {
		return nil, fmt.Errorf("totals by status: %w", err)
	}
	return rows, nil
}

func (r *ReportRepository) OrderTotals(ctx context.Context) (report.OrderTotal, error) {
	var out report.OrderTotal
	if err := r.db.GetContext(ctx, &out, orderTotalsQuery); err != nil {
		return report.OrderTotal{}, fmt.Errorf("order totals: %w", err)
	}
	return out, nil
}
