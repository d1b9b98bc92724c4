package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"sitebook/internal/core"
)

// categoryTables maps the single-direction categories to their tables.
// Project fund transfers are bidirectional and handled separately.
var categoryTables = map[core.Category]string{
	core.CategoryFundTransfer:      "fund_transfers",
	core.CategoryMaterialPurchase:  "material_purchases",
	core.CategoryWorkerAttendance:  "worker_attendances",
	core.CategoryTransportation:    "transportation_expenses",
	core.CategoryWorkerTransfer:    "worker_transfers",
	core.CategoryWorkerMiscExpense: "worker_misc_expenses",
}

// CategorySum implements ledger.TransactionReader. Amounts are summed in Go
// so malformed decimal strings degrade to zero instead of failing the call.
func (r *SQLiteRepository) CategorySum(ctx context.Context, category core.Category, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error) {
	table, ok := categoryTables[category]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: category %q has no direct sum", core.ErrDataIntegrity, category)
	}

	query := `SELECT amount FROM ` + table + ` WHERE project_id = ? AND occurs_on <= ?`
	args := []any{projectID, to.String()}
	if from != nil {
		query += ` AND occurs_on >= ?`
		args = append(args, from.String())
	}
	if category == core.CategoryMaterialPurchase {
		query += ` AND purchase_type = ?`
		args = append(args, string(core.PurchaseCash))
	}

	return r.sumAmounts(ctx, "sum "+table, query, args...)
}

// IncomingTransferSum implements ledger.TransactionReader.
func (r *SQLiteRepository) IncomingTransferSum(ctx context.Context, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error) {
	return r.transferSum(ctx, "to_project_id", projectID, from, to)
}

// OutgoingTransferSum implements ledger.TransactionReader.
func (r *SQLiteRepository) OutgoingTransferSum(ctx context.Context, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error) {
	return r.transferSum(ctx, "from_project_id", projectID, from, to)
}

func (r *SQLiteRepository) transferSum(ctx context.Context, column string, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error) {
	query := `SELECT amount FROM project_fund_transfers WHERE ` + column + ` = ? AND occurs_on <= ?`
	args := []any{projectID, to.String()}
	if from != nil {
		query += ` AND occurs_on >= ?`
		args = append(args, from.String())
	}
	return r.sumAmounts(ctx, "sum project_fund_transfers", query, args...)
}

func (r *SQLiteRepository) sumAmounts(ctx context.Context, op, query string, args ...any) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, core.NewStoreError(op, err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, core.NewStoreError(op, err)
		}
		v, ok := core.ParseAmount(raw.String)
		if !ok && raw.Valid && raw.String != "" {
			slog.WarnContext(ctx, "Malformed amount counted as zero",
				"op", op, "raw", raw.String)
		}
		sum = sum.Add(v)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, core.NewStoreError(op, err)
	}
	return sum, nil
}

// WorkersPresent implements ledger.TransactionReader.
func (r *SQLiteRepository) WorkersPresent(ctx context.Context, projectID int64, day core.Day) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM worker_attendances
		 WHERE project_id = ? AND occurs_on = ? AND present = 1`,
		projectID, day.String()).Scan(&n)
	if err != nil {
		return 0, core.NewStoreError("count workers present", err)
	}
	return n, nil
}

// markStaleTx flags every checkpoint whose date the changed transaction can
// affect, i.e. all checkpoints dated on or after the transaction day. Runs
// inside the same SQL transaction as the write, so the ledger can never
// observe a fresh checkpoint that a committed write has invalidated.
func markStaleTx(ctx context.Context, tx *sql.Tx, projectID int64, day core.Day) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE daily_summaries SET stale = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE project_id = ? AND summary_date >= ? AND stale = 0`,
		projectID, day.String())
	if err != nil {
		return fmt.Errorf("mark checkpoints stale: %w", err)
	}
	return nil
}

// insertTx inserts one row and invalidates overlapping checkpoints
// atomically. projectIDs usually holds one project; an inter-project
// transfer invalidates both sides.
func (r *SQLiteRepository) insertTx(ctx context.Context, op, query string, day core.Day, projectIDs []int64, args ...any) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, core.NewStoreError(op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, core.NewStoreError(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, core.NewStoreError(op, err)
	}
	for _, pid := range projectIDs {
		if err := markStaleTx(ctx, tx, pid, day); err != nil {
			return 0, core.NewStoreError(op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, core.NewStoreError(op, err)
	}
	return id, nil
}

func (r *SQLiteRepository) CreateFundTransfer(ctx context.Context, ft core.FundTransfer) (core.FundTransfer, error) {
	if err := ft.Validate(); err != nil {
		return core.FundTransfer{}, err
	}
	id, err := r.insertTx(ctx, "create fund transfer",
		`INSERT INTO fund_transfers (project_id, amount, occurs_on, sender) VALUES (?, ?, ?, ?)`,
		ft.OccursOn, []int64{ft.ProjectID},
		ft.ProjectID, ft.Amount, ft.OccursOn.String(), ft.Sender)
	if err != nil {
		return core.FundTransfer{}, err
	}
	ft.ID = id
	return ft, nil
}

func (r *SQLiteRepository) CreateMaterialPurchase(ctx context.Context, mp core.MaterialPurchase) (core.MaterialPurchase, error) {
	if err := mp.Validate(); err != nil {
		return core.MaterialPurchase{}, err
	}
	id, err := r.insertTx(ctx, "create material purchase",
		`INSERT INTO material_purchases (project_id, item, amount, purchase_type, occurs_on) VALUES (?, ?, ?, ?, ?)`,
		mp.OccursOn, []int64{mp.ProjectID},
		mp.ProjectID, mp.Item, mp.Amount, string(mp.PurchaseType), mp.OccursOn.String())
	if err != nil {
		return core.MaterialPurchase{}, err
	}
	mp.ID = id
	return mp, nil
}

func (r *SQLiteRepository) CreateWorkerAttendance(ctx context.Context, wa core.WorkerAttendance, dailyWage int64) (core.WorkerAttendance, error) {
	if err := wa.Validate(); err != nil {
		return core.WorkerAttendance{}, err
	}
	id, err := r.insertTx(ctx, "create worker attendance",
		`INSERT INTO worker_attendances (project_id, worker_name, present, daily_wage, amount, occurs_on) VALUES (?, ?, ?, ?, ?, ?)`,
		wa.OccursOn, []int64{wa.ProjectID},
		wa.ProjectID, wa.WorkerName, wa.Present, dailyWage, wa.Amount, wa.OccursOn.String())
	if err != nil {
		return core.WorkerAttendance{}, err
	}
	wa.ID = id
	return wa, nil
}

func (r *SQLiteRepository) CreateTransportationExpense(ctx context.Context, te core.TransportationExpense) (core.TransportationExpense, error) {
	if err := te.Validate(); err != nil {
		return core.TransportationExpense{}, err
	}
	id, err := r.insertTx(ctx, "create transportation expense",
		`INSERT INTO transportation_expenses (project_id, description, amount, occurs_on) VALUES (?, ?, ?, ?)`,
		te.OccursOn, []int64{te.ProjectID},
		te.ProjectID, te.Description, te.Amount, te.OccursOn.String())
	if err != nil {
		return core.TransportationExpense{}, err
	}
	te.ID = id
	return te, nil
}

func (r *SQLiteRepository) CreateWorkerTransfer(ctx context.Context, wt core.WorkerTransfer) (core.WorkerTransfer, error) {
	if err := wt.Validate(); err != nil {
		return core.WorkerTransfer{}, err
	}
	id, err := r.insertTx(ctx, "create worker transfer",
		`INSERT INTO worker_transfers (project_id, worker_name, amount, occurs_on) VALUES (?, ?, ?, ?)`,
		wt.OccursOn, []int64{wt.ProjectID},
		wt.ProjectID, wt.WorkerName, wt.Amount, wt.OccursOn.String())
	if err != nil {
		return core.WorkerTransfer{}, err
	}
	wt.ID = id
	return wt, nil
}

func (r *SQLiteRepository) CreateWorkerMiscExpense(ctx context.Context, me core.WorkerMiscExpense) (core.WorkerMiscExpense, error) {
	if err := me.Validate(); err != nil {
		return core.WorkerMiscExpense{}, err
	}
	id, err := r.insertTx(ctx, "create worker misc expense",
		`INSERT INTO worker_misc_expenses (project_id, description, amount, occurs_on) VALUES (?, ?, ?, ?)`,
		me.OccursOn, []int64{me.ProjectID},
		me.ProjectID, me.Description, me.Amount, me.OccursOn.String())
	if err != nil {
		return core.WorkerMiscExpense{}, err
	}
	me.ID = id
	return me, nil
}

// CreateProjectFundTransfer records an inter-project transfer. One row; it
// invalidates checkpoints on both projects.
func (r *SQLiteRepository) CreateProjectFundTransfer(ctx context.Context, pt core.ProjectFundTransfer) (core.ProjectFundTransfer, error) {
	if err := pt.Validate(); err != nil {
		return core.ProjectFundTransfer{}, err
	}
	id, err := r.insertTx(ctx, "create project fund transfer",
		`INSERT INTO project_fund_transfers (from_project_id, to_project_id, amount, occurs_on) VALUES (?, ?, ?, ?)`,
		pt.OccursOn, []int64{pt.FromProjectID, pt.ToProjectID},
		pt.FromProjectID, pt.ToProjectID, pt.Amount, pt.OccursOn.String())
	if err != nil {
		return core.ProjectFundTransfer{}, err
	}
	pt.ID = id
	return pt, nil
}

// DeleteTransaction removes one row from a category table and invalidates
// overlapping checkpoints. It returns the affected projects and day so
// callers can publish invalidation events; project fund transfers touch
// two projects.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, category core.Category, id int64) ([]int64, core.Day, error) {
	if category == core.CategoryProjectFundTransfer {
		return r.deleteProjectFundTransfer(ctx, id)
	}
	table, ok := categoryTables[category]
	if !ok {
		return nil, core.Day{}, fmt.Errorf("%w: unknown category %q", core.ErrDataIntegrity, category)
	}
	op := "delete from " + table

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	defer tx.Rollback()

	var projectID int64
	var occursOn string
	err = tx.QueryRowContext(ctx,
		`SELECT project_id, occurs_on FROM `+table+` WHERE id = ?`, id).
		Scan(&projectID, &occursOn)
	if err == sql.ErrNoRows {
		return nil, core.Day{}, sql.ErrNoRows
	}
	if err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	day, err := core.ParseDay(occursOn)
	if err != nil {
		return nil, core.Day{}, fmt.Errorf("%w: bad occurs_on %q in %s", core.ErrDataIntegrity, occursOn, table)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	if err := markStaleTx(ctx, tx, projectID, day); err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"category", string(category), "id", id, "project_id", projectID, "date", day.String())
	return []int64{projectID}, day, nil
}

func (r *SQLiteRepository) deleteProjectFundTransfer(ctx context.Context, id int64) ([]int64, core.Day, error) {
	const op = "delete project fund transfer"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	defer tx.Rollback()

	var fromID, toID int64
	var occursOn string
	err = tx.QueryRowContext(ctx,
		`SELECT from_project_id, to_project_id, occurs_on FROM project_fund_transfers WHERE id = ?`, id).
		Scan(&fromID, &toID, &occursOn)
	if err == sql.ErrNoRows {
		return nil, core.Day{}, sql.ErrNoRows
	}
	if err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	day, err := core.ParseDay(occursOn)
	if err != nil {
		return nil, core.Day{}, fmt.Errorf("%w: bad occurs_on %q in project_fund_transfers", core.ErrDataIntegrity, occursOn)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_fund_transfers WHERE id = ?`, id); err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	if err := markStaleTx(ctx, tx, fromID, day); err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	if err := markStaleTx(ctx, tx, toID, day); err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, core.Day{}, core.NewStoreError(op, err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"category", string(core.CategoryProjectFundTransfer), "id", id,
		"from_project_id", fromID, "to_project_id", toID, "date", day.String())
	return []int64{fromID, toID}, day, nil
}
