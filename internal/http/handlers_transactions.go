package http

import (
	"log/slog"
	"net/http"

	"sitebook/internal/core"
	"sitebook/internal/storage"
)

// createTransactionRequest is the union of all category payloads. Each
// category reads the fields it needs and ignores the rest at the schema
// level; unknown JSON keys are still rejected.
type createTransactionRequest struct {
	ProjectID int64  `json:"project_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`

	Sender        string `json:"sender,omitempty"`
	Item          string `json:"item,omitempty"`
	PurchaseType  string `json:"purchase_type,omitempty"`
	WorkerName    string `json:"worker_name,omitempty"`
	Present       *bool  `json:"present,omitempty"`
	DailyWage     int64  `json:"daily_wage,omitempty"`
	Description   string `json:"description,omitempty"`
	FromProjectID int64  `json:"from_project_id,omitempty"`
	ToProjectID   int64  `json:"to_project_id,omitempty"`
}

type transactionResponse struct {
	ID        int64  `json:"id"`
	Category  string `json:"category"`
	ProjectID int64  `json:"project_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	category, ok := core.ParseCategory(r.PathValue("category"))
	if !ok {
		writeValidationError(w, "unknown transaction category")
		return
	}

	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(w, "invalid request body: "+err.Error())
		return
	}

	day, err := core.ParseDay(req.Date)
	if err != nil {
		writeValidationError(w, "invalid date: expected YYYY-MM-DD")
		return
	}
	row := core.TxRow{
		ProjectID: req.ProjectID,
		Amount:    sanitizeInput(req.Amount),
		OccursOn:  day,
	}

	var (
		id        int64
		projects  []int64
		createErr error
	)

	ctx := r.Context()
	switch category {
	case core.CategoryFundTransfer:
		ft := core.FundTransfer{TxRow: row, Sender: sanitizeInput(req.Sender)}
		if err := ft.Validate(); err != nil {
			writeValidationError(w, err.Error())
			return
		}
		ft, createErr = s.repo.CreateFundTransfer(ctx, ft)
		id, projects = ft.ID, []int64{ft.ProjectID}

	case core.CategoryMaterialPurchase:
		mp := core.MaterialPurchase{
			TxRow:        row,
			Item:         sanitizeInput(req.Item),
			PurchaseType: core.PurchaseType(req.PurchaseType),
		}
		if err := mp.Validate(); err != nil {
			writeValidationError(w, err.Error())
			return
		}
		mp, createErr = s.repo.CreateMaterialPurchase(ctx, mp)
		id, projects = mp.ID, []int64{mp.ProjectID}

	case core.CategoryWorkerAttendance:
		wa := core.WorkerAttendance{
			TxRow:      row,
			WorkerName: sanitizeInput(req.WorkerName),
			Present:    req.Present != nil && *req.Present,
		}
		if err := wa.Validate(); err != nil {
			writeValidationError(w, err.Error())
			return
		}
		// Implausible wages are recorded as zero rather than rejected,
		// consistent with how report totals are guarded.
		wage := s.guard.ClampMoneyInt(ctx, "daily_wage", req.DailyWage)
		wa, createErr = s.repo.CreateWorkerAttendance(ctx, wa, wage)
		id, projects = wa.ID, []int64{wa.ProjectID}

	case core.CategoryTransportation:
		te := core.TransportationExpense{TxRow: row, Description: sanitizeInput(req.Description)}
		if err := te.Validate(); err != nil {
			writeValidationError(w, err.Error())
			return
		}
		te, createErr = s.repo.CreateTransportationExpense(ctx, te)
		id, projects = te.ID, []int64{te.ProjectID}

	case core.CategoryWorkerTransfer:
		wt := core.WorkerTransfer{TxRow: row, WorkerName: sanitizeInput(req.WorkerName)}
		if err := wt.Validate(); err != nil {
			writeValidationError(w, err.Error())
			return
		}
		wt, createErr = s.repo.CreateWorkerTransfer(ctx, wt)
		id, projects = wt.ID, []int64{wt.ProjectID}

	case core.CategoryWorkerMiscExpense:
		me := core.WorkerMiscExpense{TxRow: row, Description: sanitizeInput(req.Description)}
		if err := me.Validate(); err != nil {
			writeValidationError(w, err.Error())
			return
		}
		me, createErr = s.repo.CreateWorkerMiscExpense(ctx, me)
		id, projects = me.ID, []int64{me.ProjectID}

	case core.CategoryProjectFundTransfer:
		row.ProjectID = req.FromProjectID
		pt := core.ProjectFundTransfer{
			TxRow:         row,
			FromProjectID: req.FromProjectID,
			ToProjectID:   req.ToProjectID,
		}
		if err := pt.Validate(); err != nil {
			writeValidationError(w, err.Error())
			return
		}
		pt, createErr = s.repo.CreateProjectFundTransfer(ctx, pt)
		id, projects = pt.ID, []int64{pt.FromProjectID, pt.ToProjectID}
	}

	if createErr != nil {
		writeError(w, r, createErr)
		return
	}

	s.afterWrite(r, projects, day)

	writeJSON(w, http.StatusCreated, transactionResponse{
		ID:        id,
		Category:  string(category),
		ProjectID: row.ProjectID,
		Amount:    row.Amount,
		Date:      day.String(),
	})
}

type transactionListResponse struct {
	ProjectID int64              `json:"project_id"`
	Category  string             `json:"category"`
	Records   []storage.TxRecord `json:"records"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	category, ok := core.ParseCategory(r.PathValue("category"))
	if !ok {
		writeValidationError(w, "unknown transaction category")
		return
	}
	from, err := queryDay(r, "from")
	if err != nil {
		writeValidationError(w, "invalid from date: expected YYYY-MM-DD")
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		writeValidationError(w, "invalid to date: expected YYYY-MM-DD")
		return
	}

	if _, err := s.repo.GetProject(r.Context(), projectID); err != nil {
		writeError(w, r, err)
		return
	}

	records, err := s.repo.ListTransactions(r.Context(), category, projectID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []storage.TxRecord{}
	}

	writeJSON(w, http.StatusOK, transactionListResponse{
		ProjectID: projectID,
		Category:  string(category),
		Records:   records,
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	category, ok := core.ParseCategory(r.PathValue("category"))
	if !ok {
		writeValidationError(w, "unknown transaction category")
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	projects, day, err := s.repo.DeleteTransaction(r.Context(), category, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.afterWrite(r, projects, day)
	w.WriteHeader(http.StatusNoContent)
}

// afterWrite drops cached reports for every touched project and publishes
// invalidation events so the worker restores fast-path checkpoints.
// Publishing is best effort: the stale flags were already set in the same
// database transaction as the write.
func (s *Server) afterWrite(r *http.Request, projectIDs []int64, day core.Day) {
	ctx := r.Context()
	for _, pid := range projectIDs {
		s.reportCache.InvalidateProject(pid)

		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishInvalidation(ctx, pid, day.String()); err != nil {
			slog.WarnContext(ctx, "Failed to publish invalidation event",
				"error", err, "project_id", pid, "date", day.String())
		}
	}
}
