package core

import (
	"errors"
	"strings"
)

// Category identifies one of the seven transaction kinds that contribute to
// a project's daily ledger.
type Category string

const (
	CategoryFundTransfer        Category = "fund_transfer"
	CategoryMaterialPurchase    Category = "material_purchase"
	CategoryWorkerAttendance    Category = "worker_attendance"
	CategoryTransportation      Category = "transportation_expense"
	CategoryWorkerTransfer      Category = "worker_transfer"
	CategoryWorkerMiscExpense   Category = "worker_misc_expense"
	CategoryProjectFundTransfer Category = "project_fund_transfer"
)

// AllCategories lists every category in a stable order.
var AllCategories = []Category{
	CategoryFundTransfer,
	CategoryMaterialPurchase,
	CategoryWorkerAttendance,
	CategoryTransportation,
	CategoryWorkerTransfer,
	CategoryWorkerMiscExpense,
	CategoryProjectFundTransfer,
}

// ParseCategory maps a wire string to a known category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// PurchaseType distinguishes cash material purchases, the only kind that
// counts toward the ledger, from credit purchases settled elsewhere.
type PurchaseType string

const (
	PurchaseCash   PurchaseType = "cash"
	PurchaseCredit PurchaseType = "credit"
)

// Project is identity only as far as the ledger is concerned; everything
// else about a project is owned outside the engine.
type Project struct {
	ID   int64
	Name string
}

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyProjectName = errors.New("empty project name")
	ErrEmptyDescription = errors.New("empty description")
)

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyProjectName
	}
	if len(p.Name) > 200 {
		return errors.New("project name too long (max 200 characters)")
	}
	return nil
}

// TxRow is the shape common to all seven transaction categories. Amount is
// the raw decimal string as stored; aggregation parses it leniently.
type TxRow struct {
	ID        int64
	ProjectID int64
	Amount    string
	OccursOn  Day
}

func (r TxRow) Validate() error {
	if r.ProjectID <= 0 {
		return errors.New("missing project id")
	}
	if r.OccursOn.IsZero() {
		return ErrInvalidDay
	}
	if _, err := ParseStrictAmount(r.Amount); err != nil {
		return err
	}
	return nil
}

type FundTransfer struct {
	TxRow
	Sender string
}

type MaterialPurchase struct {
	TxRow
	Item         string
	PurchaseType PurchaseType
}

func (m MaterialPurchase) Validate() error {
	if err := m.TxRow.Validate(); err != nil {
		return err
	}
	switch m.PurchaseType {
	case PurchaseCash, PurchaseCredit:
		return nil
	default:
		return errors.New("invalid purchase type")
	}
}

// WorkerAttendance records one worker-day. The embedded Amount is the wage
// actually paid that day; it counts as an expense regardless of the
// presence flag.
type WorkerAttendance struct {
	TxRow
	WorkerName string
	Present    bool
}

type TransportationExpense struct {
	TxRow
	Description string
}

type WorkerTransfer struct {
	TxRow
	WorkerName string
}

type WorkerMiscExpense struct {
	TxRow
	Description string
}

// ProjectFundTransfer moves cash between two projects. The embedded
// ProjectID is the sending project; a single row is income for ToProjectID
// and an expense for FromProjectID, never both for the same project.
type ProjectFundTransfer struct {
	TxRow
	FromProjectID int64
	ToProjectID   int64
}

func (t ProjectFundTransfer) Validate() error {
	if err := t.TxRow.Validate(); err != nil {
		return err
	}
	if t.FromProjectID <= 0 || t.ToProjectID <= 0 {
		return errors.New("missing transfer endpoint")
	}
	if t.FromProjectID == t.ToProjectID {
		return errors.New("transfer endpoints must differ")
	}
	return nil
}
