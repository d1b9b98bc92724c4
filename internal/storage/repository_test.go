package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"sitebook/internal/core"
	"sitebook/internal/ledger"
	"sitebook/internal/sanity"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "sitebook.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testProject(t *testing.T, repo *SQLiteRepository, name string) core.Project {
	t.Helper()
	p, err := repo.CreateProject(context.Background(), core.Project{Name: name})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func testDay(t *testing.T, s string) core.Day {
	t.Helper()
	d, err := core.ParseDay(s)
	if err != nil {
		t.Fatalf("bad day %q: %v", s, err)
	}
	return d
}

func TestProjectLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := testProject(t, repo, "Riverside Apartments")

	got, err := repo.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Name != "Riverside Apartments" {
		t.Errorf("name = %q", got.Name)
	}

	if _, err := repo.GetProject(ctx, 9999); err != core.ErrProjectNotFound {
		t.Errorf("missing project: got %v, want ErrProjectNotFound", err)
	}

	if _, err := repo.CreateProject(ctx, core.Project{Name: "  "}); err == nil {
		t.Error("blank project name accepted")
	}
}

func TestCategorySums(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t, repo, "Hilltop Villas")
	other := testProject(t, repo, "Other Site")
	d := testDay(t, "2025-04-10")

	mustCreate := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	_, err := repo.CreateFundTransfer(ctx, core.FundTransfer{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "10000", OccursOn: d}, Sender: "head office"})
	mustCreate(err)
	_, err = repo.CreateMaterialPurchase(ctx, core.MaterialPurchase{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "1500.50", OccursOn: d},
		Item:  "cement", PurchaseType: core.PurchaseCash})
	mustCreate(err)
	_, err = repo.CreateMaterialPurchase(ctx, core.MaterialPurchase{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "80000", OccursOn: d},
		Item:  "steel", PurchaseType: core.PurchaseCredit})
	mustCreate(err)
	_, err = repo.CreateWorkerAttendance(ctx, core.WorkerAttendance{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "450", OccursOn: d},
		WorkerName: "U Kyaw", Present: true}, 450)
	mustCreate(err)
	_, err = repo.CreateWorkerAttendance(ctx, core.WorkerAttendance{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "450", OccursOn: d},
		WorkerName: "U Myint", Present: false}, 450)
	mustCreate(err)
	_, err = repo.CreateTransportationExpense(ctx, core.TransportationExpense{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "120", OccursOn: d}, Description: "truck hire"})
	mustCreate(err)
	_, err = repo.CreateWorkerTransfer(ctx, core.WorkerTransfer{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "60", OccursOn: d}, WorkerName: "U Kyaw"})
	mustCreate(err)
	_, err = repo.CreateWorkerMiscExpense(ctx, core.WorkerMiscExpense{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "35.25", OccursOn: d}, Description: "drinking water"})
	mustCreate(err)
	_, err = repo.CreateProjectFundTransfer(ctx, core.ProjectFundTransfer{
		TxRow:         core.TxRow{ProjectID: p.ID, Amount: "2000", OccursOn: d},
		FromProjectID: p.ID, ToProjectID: other.ID})
	mustCreate(err)

	sums := []struct {
		name     string
		category core.Category
		want     string
	}{
		{"fund transfers", core.CategoryFundTransfer, "10000"},
		{"cash materials only", core.CategoryMaterialPurchase, "1500.5"},
		{"wages regardless of presence", core.CategoryWorkerAttendance, "900"},
		{"transportation", core.CategoryTransportation, "120"},
		{"worker transfers", core.CategoryWorkerTransfer, "60"},
		{"misc", core.CategoryWorkerMiscExpense, "35.25"},
	}
	for _, s := range sums {
		got, err := repo.CategorySum(ctx, s.category, p.ID, &d, d)
		if err != nil {
			t.Fatalf("CategorySum(%s): %v", s.category, err)
		}
		if got.String() != s.want {
			t.Errorf("%s = %s, want %s", s.name, got, s.want)
		}
	}

	out, err := repo.OutgoingTransferSum(ctx, p.ID, &d, d)
	if err != nil {
		t.Fatalf("OutgoingTransferSum: %v", err)
	}
	if out.String() != "2000" {
		t.Errorf("outgoing = %s, want 2000", out)
	}
	in, err := repo.IncomingTransferSum(ctx, other.ID, &d, d)
	if err != nil {
		t.Fatalf("IncomingTransferSum: %v", err)
	}
	if in.String() != "2000" {
		t.Errorf("incoming = %s, want 2000", in)
	}
	none, err := repo.IncomingTransferSum(ctx, p.ID, &d, d)
	if err != nil {
		t.Fatalf("IncomingTransferSum(sender): %v", err)
	}
	if !none.IsZero() {
		t.Errorf("sender credited its own transfer: %s", none)
	}

	workers, err := repo.WorkersPresent(ctx, p.ID, d)
	if err != nil {
		t.Fatalf("WorkersPresent: %v", err)
	}
	if workers != 1 {
		t.Errorf("workers present = %d, want 1 (absent workers excluded)", workers)
	}
}

func TestCategorySumRangeAndOpenStart(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t, repo, "Range Site")

	for _, e := range []struct{ day, amount string }{
		{"2025-01-05", "1"}, {"2025-01-10", "10"}, {"2025-01-15", "100"},
	} {
		if _, err := repo.CreateFundTransfer(ctx, core.FundTransfer{
			TxRow: core.TxRow{ProjectID: p.ID, Amount: e.amount, OccursOn: testDay(t, e.day)}}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	from := testDay(t, "2025-01-06")
	got, err := repo.CategorySum(ctx, core.CategoryFundTransfer, p.ID, &from, testDay(t, "2025-01-14"))
	if err != nil {
		t.Fatalf("CategorySum: %v", err)
	}
	if got.String() != "10" {
		t.Errorf("bounded sum = %s, want 10", got)
	}

	got, err = repo.CategorySum(ctx, core.CategoryFundTransfer, p.ID, nil, testDay(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("CategorySum: %v", err)
	}
	if got.String() != "11" {
		t.Errorf("open-start sum = %s, want 11", got)
	}
}

func TestCheckpointUpsertAndLookup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t, repo, "Checkpoint Site")

	cp := core.Checkpoint{
		ProjectID:        p.ID,
		Date:             testDay(t, "2025-02-10"),
		CarriedForward:   mustDecimal(t, "100"),
		TotalIncome:      mustDecimal(t, "500"),
		TotalExpenses:    mustDecimal(t, "150.25"),
		RemainingBalance: mustDecimal(t, "449.75"),
	}
	saved, err := repo.Upsert(ctx, cp)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if saved.RemainingBalance.String() != "449.75" || saved.Stale {
		t.Errorf("saved checkpoint wrong: %+v", saved)
	}

	// Latest strictly before: same-day checkpoint must not qualify.
	found, err := repo.FindLatestBefore(ctx, p.ID, testDay(t, "2025-02-10"))
	if err != nil {
		t.Fatalf("FindLatestBefore: %v", err)
	}
	if found != nil {
		t.Errorf("checkpoint at the query day returned: %+v", found)
	}

	found, err = repo.FindLatestBefore(ctx, p.ID, testDay(t, "2025-02-11"))
	if err != nil {
		t.Fatalf("FindLatestBefore: %v", err)
	}
	if found == nil || !found.Date.Equal(cp.Date) {
		t.Fatalf("expected checkpoint at 2025-02-10, got %+v", found)
	}

	// Re-commit with new values fully replaces the row.
	cp.RemainingBalance = mustDecimal(t, "600")
	if _, err := repo.Upsert(ctx, cp); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	found, err = repo.FindExact(ctx, p.ID, cp.Date)
	if err != nil {
		t.Fatalf("FindExact: %v", err)
	}
	if found.RemainingBalance.String() != "600" {
		t.Errorf("re-commit did not replace: %s", found.RemainingBalance)
	}
}

func TestBackdatedWriteMarksCheckpointsStale(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t, repo, "Stale Site")

	for _, dayStr := range []string{"2025-03-05", "2025-03-10"} {
		if _, err := repo.Upsert(ctx, core.Checkpoint{
			ProjectID: p.ID, Date: testDay(t, dayStr),
			CarriedForward:   mustDecimal(t, "0"),
			TotalIncome:      mustDecimal(t, "0"),
			TotalExpenses:    mustDecimal(t, "0"),
			RemainingBalance: mustDecimal(t, "0"),
		}); err != nil {
			t.Fatalf("Upsert %s: %v", dayStr, err)
		}
	}

	// Write dated between the two checkpoints: only the later one overlaps.
	if _, err := repo.CreateFundTransfer(ctx, core.FundTransfer{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "500", OccursOn: testDay(t, "2025-03-07")}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	early, err := repo.FindExact(ctx, p.ID, testDay(t, "2025-03-05"))
	if err != nil {
		t.Fatalf("FindExact: %v", err)
	}
	if early.Stale {
		t.Error("checkpoint before the write was invalidated")
	}
	late, err := repo.FindExact(ctx, p.ID, testDay(t, "2025-03-10"))
	if err != nil {
		t.Fatalf("FindExact: %v", err)
	}
	if !late.Stale {
		t.Error("overlapping checkpoint not marked stale")
	}

	// Stale checkpoints are invisible to the resolver's lookup.
	found, err := repo.FindLatestBefore(ctx, p.ID, testDay(t, "2025-03-11"))
	if err != nil {
		t.Fatalf("FindLatestBefore: %v", err)
	}
	if found == nil || !found.Date.Equal(testDay(t, "2025-03-05")) {
		t.Errorf("expected fresh 03-05 checkpoint, got %+v", found)
	}

	days, err := repo.StaleCheckpointDays(ctx, p.ID)
	if err != nil {
		t.Fatalf("StaleCheckpointDays: %v", err)
	}
	if len(days) != 1 || !days[0].Equal(testDay(t, "2025-03-10")) {
		t.Errorf("stale days = %v", days)
	}
}

func TestDeleteInvalidatesBothTransferSides(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	sender := testProject(t, repo, "Sender")
	receiver := testProject(t, repo, "Receiver")
	d := testDay(t, "2025-03-07")

	pt, err := repo.CreateProjectFundTransfer(ctx, core.ProjectFundTransfer{
		TxRow:         core.TxRow{ProjectID: sender.ID, Amount: "900", OccursOn: d},
		FromProjectID: sender.ID, ToProjectID: receiver.ID})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	for _, pid := range []int64{sender.ID, receiver.ID} {
		if _, err := repo.Upsert(ctx, core.Checkpoint{
			ProjectID: pid, Date: testDay(t, "2025-03-08"),
			CarriedForward:   mustDecimal(t, "0"),
			TotalIncome:      mustDecimal(t, "0"),
			TotalExpenses:    mustDecimal(t, "0"),
			RemainingBalance: mustDecimal(t, "0"),
		}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	if _, _, err := repo.DeleteTransaction(ctx, core.CategoryProjectFundTransfer, pt.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	for _, pid := range []int64{sender.ID, receiver.ID} {
		cp, err := repo.FindExact(ctx, pid, testDay(t, "2025-03-08"))
		if err != nil {
			t.Fatalf("FindExact: %v", err)
		}
		if !cp.Stale {
			t.Errorf("project %d checkpoint not invalidated by transfer delete", pid)
		}
	}
}

func TestDayJournal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t, repo, "Journal Site")
	other := testProject(t, repo, "Peer Site")
	d := testDay(t, "2025-05-01")

	if _, err := repo.CreateFundTransfer(ctx, core.FundTransfer{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "100", OccursOn: d}, Sender: "office"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateProjectFundTransfer(ctx, core.ProjectFundTransfer{
		TxRow:         core.TxRow{ProjectID: other.ID, Amount: "250", OccursOn: d},
		FromProjectID: other.ID, ToProjectID: p.ID}); err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	entries, err := repo.DayJournal(ctx, p.ID, d)
	if err != nil {
		t.Fatalf("DayJournal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(entries))
	}

	var sawIncoming bool
	for _, e := range entries {
		if e.Category == core.CategoryProjectFundTransfer {
			if !e.Incoming {
				t.Errorf("transfer should be incoming for receiver: %+v", e)
			}
			sawIncoming = true
		}
	}
	if !sawIncoming {
		t.Error("incoming transfer missing from journal")
	}
}

func TestListTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t, repo, "Listing Site")
	other := testProject(t, repo, "Peer Site")

	for _, e := range []struct{ day, amount string }{
		{"2025-07-01", "100"}, {"2025-07-03", "300"}, {"2025-07-05", "500"},
	} {
		if _, err := repo.CreateFundTransfer(ctx, core.FundTransfer{
			TxRow: core.TxRow{ProjectID: p.ID, Amount: e.amount, OccursOn: testDay(t, e.day)}}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	from := testDay(t, "2025-07-02")
	to := testDay(t, "2025-07-04")
	records, err := repo.ListTransactions(ctx, core.CategoryFundTransfer, p.ID, &from, &to)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(records) != 1 || records[0].Amount != "300" {
		t.Errorf("bounded records = %+v, want single 300", records)
	}

	records, err = repo.ListTransactions(ctx, core.CategoryFundTransfer, p.ID, nil, nil)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(records) != 3 || records[0].Date != "2025-07-01" || records[2].Date != "2025-07-05" {
		t.Errorf("unbounded records out of order: %+v", records)
	}

	// Both transfer directions, merged in date order.
	if _, err := repo.CreateProjectFundTransfer(ctx, core.ProjectFundTransfer{
		TxRow:         core.TxRow{ProjectID: p.ID, Amount: "50", OccursOn: testDay(t, "2025-07-02")},
		FromProjectID: p.ID, ToProjectID: other.ID}); err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if _, err := repo.CreateProjectFundTransfer(ctx, core.ProjectFundTransfer{
		TxRow:         core.TxRow{ProjectID: other.ID, Amount: "70", OccursOn: testDay(t, "2025-07-01")},
		FromProjectID: other.ID, ToProjectID: p.ID}); err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	records, err = repo.ListTransactions(ctx, core.CategoryProjectFundTransfer, p.ID, nil, nil)
	if err != nil {
		t.Fatalf("ListTransactions(transfers): %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("transfer records = %d, want 2", len(records))
	}
	if !records[0].Incoming || records[0].Date != "2025-07-01" {
		t.Errorf("first record should be the earlier incoming transfer: %+v", records[0])
	}
	if records[1].Incoming {
		t.Errorf("second record should be outgoing: %+v", records[1])
	}
}

// End to end over real SQLite: the full engine stack against the
// repository, exercising checkpoint fast path and re-commit after a
// backdated edit.
func TestLedgerServiceOverSQLite(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t, repo, "E2E Site")

	svc := ledger.NewService(repo, repo, sanity.New(sanity.DefaultConfig()), 0)

	if _, err := repo.CreateFundTransfer(ctx, core.FundTransfer{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "10000", OccursOn: testDay(t, "2025-06-01")}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateWorkerAttendance(ctx, core.WorkerAttendance{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "1200", OccursOn: testDay(t, "2025-06-02")},
		WorkerName: "crew", Present: true}, 1200); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Commit(ctx, p.ID, testDay(t, "2025-06-02")); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	report, err := svc.Report(ctx, p.ID, testDay(t, "2025-06-03"))
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Source != core.SourceCheckpoint {
		t.Errorf("expected fast path, got %s", report.Source)
	}
	if report.CarriedForward.String() != "8800" {
		t.Errorf("carried forward = %s, want 8800", report.CarriedForward)
	}

	// Backdated purchase invalidates the checkpoint; the report stays
	// correct through the fallback path.
	if _, err := repo.CreateMaterialPurchase(ctx, core.MaterialPurchase{
		TxRow: core.TxRow{ProjectID: p.ID, Amount: "800", OccursOn: testDay(t, "2025-06-01")},
		Item:  "bricks", PurchaseType: core.PurchaseCash}); err != nil {
		t.Fatalf("create: %v", err)
	}

	report, err = svc.Report(ctx, p.ID, testDay(t, "2025-06-03"))
	if err != nil {
		t.Fatalf("Report after backdated edit: %v", err)
	}
	if report.Source != core.SourceComputedFromScratch {
		t.Errorf("stale checkpoint used: %s", report.Source)
	}
	if report.CarriedForward.String() != "8000" {
		t.Errorf("carried forward = %s, want 8000", report.CarriedForward)
	}
}
