package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sitebook/internal/core"
	applog "sitebook/internal/log"
	"sitebook/internal/storage"
)

// reportTimeout bounds a single report computation end to end, including
// a possible full-history recomputation.
const reportTimeout = 15 * time.Second

type breakdownResponse struct {
	FundTransfers            string `json:"fund_transfers"`
	IncomingProjectTransfers string `json:"incoming_project_transfers"`
	WagesPaid                string `json:"wages_paid"`
	CashMaterialPurchases    string `json:"cash_material_purchases"`
	Transportation           string `json:"transportation"`
	WorkerTransfers          string `json:"worker_transfers"`
	MiscExpenses             string `json:"misc_expenses"`
	OutgoingProjectTransfers string `json:"outgoing_project_transfers"`
}

type reportResponse struct {
	ProjectID        int64             `json:"project_id"`
	Date             string            `json:"date"`
	CarriedForward   string            `json:"carried_forward"`
	TotalIncome      string            `json:"total_income"`
	TotalExpenses    string            `json:"total_expenses"`
	RemainingBalance string            `json:"remaining_balance"`
	Source           string            `json:"source"`
	WorkersPresent   int64             `json:"workers_present"`
	Breakdown        breakdownResponse `json:"breakdown"`
}

func buildReportResponse(rep core.DailyReport) reportResponse {
	return reportResponse{
		ProjectID:        rep.ProjectID,
		Date:             rep.Date.String(),
		CarriedForward:   rep.CarriedForward.String(),
		TotalIncome:      rep.TotalIncome.String(),
		TotalExpenses:    rep.TotalExpenses.String(),
		RemainingBalance: rep.RemainingBalance.String(),
		Source:           string(rep.Source),
		WorkersPresent:   rep.WorkersPresent,
		Breakdown: breakdownResponse{
			FundTransfers:            rep.Breakdown.FundTransfers.String(),
			IncomingProjectTransfers: rep.Breakdown.IncomingProjectTransfers.String(),
			WagesPaid:                rep.Breakdown.WagesPaid.String(),
			CashMaterialPurchases:    rep.Breakdown.CashMaterialPurchases.String(),
			Transportation:           rep.Breakdown.Transportation.String(),
			WorkerTransfers:          rep.Breakdown.WorkerTransfers.String(),
			MiscExpenses:             rep.Breakdown.MiscExpenses.String(),
			OutgoingProjectTransfers: rep.Breakdown.OutgoingProjectTransfers.String(),
		},
	}
}

type checkpointResponse struct {
	ProjectID        int64  `json:"project_id"`
	Date             string `json:"date"`
	CarriedForward   string `json:"carried_forward"`
	TotalIncome      string `json:"total_income"`
	TotalExpenses    string `json:"total_expenses"`
	RemainingBalance string `json:"remaining_balance"`
}

func (s *Server) handleLedgerReport(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	day, err := pathDay(r)
	if err != nil {
		writeValidationError(w, "invalid date: expected YYYY-MM-DD")
		return
	}

	if rep, found := s.reportCache.Get(projectID, day); found {
		slog.DebugContext(r.Context(), "Report cache hit",
			"project_id", projectID, "date", day.String())
		writeJSON(w, http.StatusOK, buildReportResponse(rep))
		return
	}

	if _, err := s.repo.GetProject(r.Context(), projectID); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	rep, err := s.ledger.Report(ctx, projectID, day)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.reportCache.Set(rep)
	writeJSON(w, http.StatusOK, buildReportResponse(rep))
}

func (s *Server) handleLedgerCommit(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	day, err := pathDay(r)
	if err != nil {
		writeValidationError(w, "invalid date: expected YYYY-MM-DD")
		return
	}

	if _, err := s.repo.GetProject(r.Context(), projectID); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	cp, err := s.ledger.Commit(ctx, projectID, day)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The commit changed which days resolve through the fast path, so
	// cached reports for the project may carry an outdated source tag.
	s.reportCache.InvalidateProject(projectID)

	applog.FromContext(ctx).InfoContext(ctx, "Checkpoint committed",
		applog.FieldProjectID, projectID,
		applog.FieldLedgerDate, day.String())

	writeJSON(w, http.StatusOK, checkpointResponse{
		ProjectID:        cp.ProjectID,
		Date:             cp.Date.String(),
		CarriedForward:   cp.CarriedForward.String(),
		TotalIncome:      cp.TotalIncome.String(),
		TotalExpenses:    cp.TotalExpenses.String(),
		RemainingBalance: cp.RemainingBalance.String(),
	})
}

type journalResponse struct {
	ProjectID int64                  `json:"project_id"`
	Date      string                 `json:"date"`
	Entries   []storage.JournalEntry `json:"entries"`
}

func (s *Server) handleDayJournal(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	day, err := pathDay(r)
	if err != nil {
		writeValidationError(w, "invalid date: expected YYYY-MM-DD")
		return
	}

	if _, err := s.repo.GetProject(r.Context(), projectID); err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.repo.DayJournal(r.Context(), projectID, day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []storage.JournalEntry{}
	}

	writeJSON(w, http.StatusOK, journalResponse{
		ProjectID: projectID,
		Date:      day.String(),
		Entries:   entries,
	})
}
