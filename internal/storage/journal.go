package storage

import (
	"context"
	"fmt"
	"sort"

	"sitebook/internal/core"
)

// JournalEntry is one transaction as shown in a day's journal, category
// tagged. Amount is the raw stored decimal string.
type JournalEntry struct {
	ID       int64         `json:"id"`
	Category core.Category `json:"category"`
	Amount   string        `json:"amount"`
	Detail   string        `json:"detail"`
	Incoming bool          `json:"incoming,omitempty"` // project transfers only
}

type journalQuery struct {
	category core.Category
	query    string
	incoming bool
}

// TxRecord is one transaction row as listed per category, with its date.
type TxRecord struct {
	ID       int64         `json:"id"`
	Category core.Category `json:"category"`
	Amount   string        `json:"amount"`
	Date     string        `json:"date"`
	Detail   string        `json:"detail"`
	Incoming bool          `json:"incoming,omitempty"` // project transfers only
}

// detailExprs names the per-table column (or expression) shown as a
// row's detail in listings and journals.
var detailExprs = map[core.Category]string{
	core.CategoryFundTransfer:      `sender`,
	core.CategoryMaterialPurchase:  `item || ' (' || purchase_type || ')'`,
	core.CategoryWorkerAttendance:  `worker_name`,
	core.CategoryTransportation:    `description`,
	core.CategoryWorkerTransfer:    `worker_name`,
	core.CategoryWorkerMiscExpense: `description`,
}

// ListTransactions returns a project's rows of one category ordered by
// date then id, optionally bounded by [from, to]. Project fund transfers
// include both directions, tagged by the Incoming flag.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, category core.Category, projectID int64, from, to *core.Day) ([]TxRecord, error) {
	if category == core.CategoryProjectFundTransfer {
		return r.listProjectFundTransfers(ctx, projectID, from, to)
	}
	table, ok := categoryTables[category]
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", core.ErrDataIntegrity, category)
	}

	query := `SELECT id, amount, occurs_on, ` + detailExprs[category] +
		` FROM ` + table + ` WHERE project_id = ?`
	args := []any{projectID}
	query, args = boundByDays(query, args, from, to)
	query += ` ORDER BY occurs_on, id`

	return r.queryTxRecords(ctx, "list "+table, category, false, query, args...)
}

func (r *SQLiteRepository) listProjectFundTransfers(ctx context.Context, projectID int64, from, to *core.Day) ([]TxRecord, error) {
	const op = "list project_fund_transfers"

	inQuery := `SELECT id, amount, occurs_on, 'from project ' || from_project_id
		 FROM project_fund_transfers WHERE to_project_id = ?`
	inArgs := []any{projectID}
	inQuery, inArgs = boundByDays(inQuery, inArgs, from, to)

	incoming, err := r.queryTxRecords(ctx, op, core.CategoryProjectFundTransfer, true, inQuery, inArgs...)
	if err != nil {
		return nil, err
	}

	outQuery := `SELECT id, amount, occurs_on, 'to project ' || to_project_id
		 FROM project_fund_transfers WHERE from_project_id = ?`
	outArgs := []any{projectID}
	outQuery, outArgs = boundByDays(outQuery, outArgs, from, to)

	outgoing, err := r.queryTxRecords(ctx, op, core.CategoryProjectFundTransfer, false, outQuery, outArgs...)
	if err != nil {
		return nil, err
	}

	records := append(incoming, outgoing...)
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func boundByDays(query string, args []any, from, to *core.Day) (string, []any) {
	if from != nil {
		query += ` AND occurs_on >= ?`
		args = append(args, from.String())
	}
	if to != nil {
		query += ` AND occurs_on <= ?`
		args = append(args, to.String())
	}
	return query, args
}

func (r *SQLiteRepository) queryTxRecords(ctx context.Context, op string, category core.Category, incoming bool, query string, args ...any) ([]TxRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStoreError(op, err)
	}
	defer rows.Close()

	var records []TxRecord
	for rows.Next() {
		rec := TxRecord{Category: category, Incoming: incoming}
		if err := rows.Scan(&rec.ID, &rec.Amount, &rec.Date, &rec.Detail); err != nil {
			return nil, core.NewStoreError(op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError(op, err)
	}
	return records, nil
}

// DayJournal lists every transaction touching the project on one day,
// across all seven categories.
func (r *SQLiteRepository) DayJournal(ctx context.Context, projectID int64, day core.Day) ([]JournalEntry, error) {
	var queries []journalQuery
	for _, cat := range core.AllCategories {
		table, ok := categoryTables[cat]
		if !ok {
			continue // project transfers are bidirectional, handled below
		}
		queries = append(queries, journalQuery{category: cat,
			query: `SELECT id, amount, ` + detailExprs[cat] + ` FROM ` + table +
				` WHERE project_id = ? AND occurs_on = ? ORDER BY id`})
	}
	queries = append(queries,
		journalQuery{category: core.CategoryProjectFundTransfer, incoming: true,
			query: `SELECT id, amount, 'from project ' || from_project_id FROM project_fund_transfers WHERE to_project_id = ? AND occurs_on = ? ORDER BY id`},
		journalQuery{category: core.CategoryProjectFundTransfer,
			query: `SELECT id, amount, 'to project ' || to_project_id FROM project_fund_transfers WHERE from_project_id = ? AND occurs_on = ? ORDER BY id`})

	var entries []JournalEntry
	for _, q := range queries {
		rows, err := r.db.QueryContext(ctx, q.query, projectID, day.String())
		if err != nil {
			return nil, core.NewStoreError(fmt.Sprintf("journal %s", q.category), err)
		}
		for rows.Next() {
			e := JournalEntry{Category: q.category, Incoming: q.incoming}
			if err := rows.Scan(&e.ID, &e.Amount, &e.Detail); err != nil {
				rows.Close()
				return nil, core.NewStoreError(fmt.Sprintf("journal %s", q.category), err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, core.NewStoreError(fmt.Sprintf("journal %s", q.category), err)
		}
		rows.Close()
	}
	return entries, nil
}
