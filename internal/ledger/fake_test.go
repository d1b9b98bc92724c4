package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sitebook/internal/core"
)

// fakeStore is an in-memory TransactionReader + CheckpointStore used by the
// engine tests. Rows are appended through the add* helpers; amounts are kept
// as raw strings so malformed values flow through the same lenient parsing
// as real storage.
type fakeStore struct {
	mu sync.Mutex

	rows        []fakeRow
	transfers   []core.ProjectFundTransfer
	presence    map[string]int64
	checkpoints []core.Checkpoint

	readErr error // when set, every read fails with it
	dupDate bool  // simulate two checkpoints sharing a date
}

type fakeRow struct {
	category     core.Category
	projectID    int64
	amount       string
	day          core.Day
	purchaseType core.PurchaseType
}

func newFakeStore() *fakeStore {
	return &fakeStore{presence: make(map[string]int64)}
}

func (f *fakeStore) add(cat core.Category, projectID int64, day core.Day, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, fakeRow{category: cat, projectID: projectID, amount: amount, day: day})
}

func (f *fakeStore) addMaterial(projectID int64, day core.Day, amount string, pt core.PurchaseType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, fakeRow{
		category: core.CategoryMaterialPurchase, projectID: projectID,
		amount: amount, day: day, purchaseType: pt,
	})
}

func (f *fakeStore) addTransfer(from, to int64, day core.Day, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, core.ProjectFundTransfer{
		TxRow:         core.TxRow{ProjectID: from, Amount: amount, OccursOn: day},
		FromProjectID: from,
		ToProjectID:   to,
	})
}

func (f *fakeStore) setPresent(projectID int64, day core.Day, workers int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence[fmt.Sprintf("%d|%s", projectID, day)] = workers
}

func inRange(day core.Day, from *core.Day, to core.Day) bool {
	if day.After(to) {
		return false
	}
	if from != nil && day.Before(*from) {
		return false
	}
	return true
}

func (f *fakeStore) CategorySum(ctx context.Context, category core.Category, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return decimal.Zero, core.NewStoreError("category sum", f.readErr)
	}
	sum := decimal.Zero
	for _, r := range f.rows {
		if r.category != category || r.projectID != projectID || !inRange(r.day, from, to) {
			continue
		}
		if category == core.CategoryMaterialPurchase && r.purchaseType != core.PurchaseCash {
			continue
		}
		v, _ := core.ParseAmount(r.amount)
		sum = sum.Add(v)
	}
	return sum, nil
}

func (f *fakeStore) IncomingTransferSum(ctx context.Context, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error) {
	return f.transferSum(projectID, from, to, true)
}

func (f *fakeStore) OutgoingTransferSum(ctx context.Context, projectID int64, from *core.Day, to core.Day) (decimal.Decimal, error) {
	return f.transferSum(projectID, from, to, false)
}

func (f *fakeStore) transferSum(projectID int64, from *core.Day, to core.Day, incoming bool) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return decimal.Zero, core.NewStoreError("transfer sum", f.readErr)
	}
	sum := decimal.Zero
	for _, t := range f.transfers {
		if !inRange(t.OccursOn, from, to) {
			continue
		}
		if incoming && t.ToProjectID != projectID {
			continue
		}
		if !incoming && t.FromProjectID != projectID {
			continue
		}
		v, _ := core.ParseAmount(t.Amount)
		sum = sum.Add(v)
	}
	return sum, nil
}

func (f *fakeStore) WorkersPresent(ctx context.Context, projectID int64, day core.Day) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, core.NewStoreError("workers present", f.readErr)
	}
	return f.presence[fmt.Sprintf("%d|%s", projectID, day)], nil
}

func (f *fakeStore) FindLatestBefore(ctx context.Context, projectID int64, day core.Day) (*core.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, core.NewStoreError("find checkpoint", f.readErr)
	}
	if f.dupDate {
		return nil, fmt.Errorf("%w: duplicate checkpoint date", core.ErrDataIntegrity)
	}
	var best *core.Checkpoint
	for i := range f.checkpoints {
		cp := f.checkpoints[i]
		if cp.ProjectID != projectID || cp.Stale || !cp.Date.Before(day) {
			continue
		}
		if best == nil || cp.Date.After(best.Date) {
			best = &f.checkpoints[i]
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeStore) FindExact(ctx context.Context, projectID int64, day core.Day) (*core.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, core.NewStoreError("find checkpoint", f.readErr)
	}
	for i := range f.checkpoints {
		if f.checkpoints[i].ProjectID == projectID && f.checkpoints[i].Date.Equal(day) {
			cp := f.checkpoints[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Upsert(ctx context.Context, cp core.Checkpoint) (core.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return core.Checkpoint{}, core.NewStoreError("upsert checkpoint", f.readErr)
	}
	now := time.Now()
	cp.Stale = false
	for i := range f.checkpoints {
		if f.checkpoints[i].ProjectID == cp.ProjectID && f.checkpoints[i].Date.Equal(cp.Date) {
			cp.CreatedAt = f.checkpoints[i].CreatedAt
			cp.UpdatedAt = now
			f.checkpoints[i] = cp
			return cp, nil
		}
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now
	f.checkpoints = append(f.checkpoints, cp)
	return cp, nil
}

// markStale flags every checkpoint dated on or after day, mirroring what
// real storage does when a backdated transaction changes.
func (f *fakeStore) markStale(projectID int64, day core.Day) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.checkpoints {
		if f.checkpoints[i].ProjectID == projectID && !f.checkpoints[i].Date.Before(day) {
			f.checkpoints[i].Stale = true
		}
	}
}
