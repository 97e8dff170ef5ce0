package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"financify/internal/core"

	"github.com/google/uuid"
)

// Who asked for a run; recorded in logs and run requests.
const (
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
	TriggerQueue    = "queue"
)

// RunResult describes one aggregation run.
type RunResult struct {
	RunID               string        `json:"run_id"`
	NoOp                bool          `json:"no_op"`
	Reports             []core.Report `json:"reports"`
	ConsumedAssets      []int64       `json:"consumed_assets"`
	ConsumedLiabilities []int64       `json:"consumed_liabilities"`
	StartedAt           time.Time     `json:"started_at"`
	Duration            time.Duration `json:"duration"`
}

// Pipeline performs aggregation runs against a Store. Runs are serialized.
type Pipeline struct {
	store Store
	mu    sync.Mutex
}

func NewPipeline(store Store) *Pipeline {
	return &Pipeline{store: store}
}

type ownerMonth struct {
	userID int64
	month  core.MonthKey
}

// Run reads every unused statement, creates one report per owner and month
// not reported yet, and marks all those statements used. Either every write
// of the run is committed or none is.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := &RunResult{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := slog.With("run_id", res.RunID)

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return nil, &core.StoreError{Op: "begin", Err: err}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil {
			logger.DebugContext(ctx, "Rollback after aborted run failed", "error", err)
		}
	}()

	existing, err := readReports(ctx, tx)
	if err != nil {
		return nil, err
	}
	assets, err := readStatements(ctx, tx, core.TableAssets)
	if err != nil {
		return nil, err
	}
	liabilities, err := readStatements(ctx, tx, core.TableLiabilities)
	if err != nil {
		return nil, err
	}

	unusedAssets := unused(assets)
	unusedLiabilities := unused(liabilities)
	if len(unusedAssets) == 0 && len(unusedLiabilities) == 0 {
		res.NoOp = true
		res.Duration = time.Since(res.StartedAt)
		logger.InfoContext(ctx, "Report run found nothing to aggregate")
		return res, nil
	}

	SortByDate(unusedAssets)
	SortByDate(unusedLiabilities)

	created, err := plan(existing, unusedAssets, unusedLiabilities)
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		rows := make([]Row, 0, len(created))
		for _, r := range created {
			rows = append(rows, ReportRow(r))
		}
		if err := tx.BulkInsert(ctx, core.TableReports, ReportColumns, rows); err != nil {
			return nil, &core.StoreError{Op: "insert", Table: core.TableReports, Err: err}
		}
	}

	res.ConsumedAssets = ids(unusedAssets)
	res.ConsumedLiabilities = ids(unusedLiabilities)
	if err := markUsed(ctx, tx, core.TableAssets, res.ConsumedAssets); err != nil {
		return nil, err
	}
	if err := markUsed(ctx, tx, core.TableLiabilities, res.ConsumedLiabilities); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &core.StoreError{Op: "commit", Err: err}
	}
	committed = true

	res.Reports = created
	res.Duration = time.Since(res.StartedAt)
	logger.InfoContext(ctx, "Report run committed",
		"reports_created", len(created),
		"assets_consumed", len(res.ConsumedAssets),
		"liabilities_consumed", len(res.ConsumedLiabilities),
		"duration", res.Duration)
	return res, nil
}

// plan assembles the reports for every owner and month that has unused
// statements and no existing report. Report ids continue after the highest
// existing id.
func plan(existing []core.Report, assets, liabilities []core.Statement) ([]core.Report, error) {
	reported := make(map[ownerMonth]bool, len(existing))
	var maxID int64
	for _, r := range existing {
		reported[ownerMonth{r.UserID, r.Date}] = true
		maxID = max(maxID, r.ID)
	}
	nextID := maxID + 1

	assetsByOwner := groupByOwner(assets)
	liabilitiesByOwner := groupByOwner(liabilities)

	var created []core.Report
	seen := make(map[ownerMonth]bool)
	for _, owner := range owners(assetsByOwner, liabilitiesByOwner) {
		assetBuckets := BucketByMonth(assetsByOwner[owner])
		liabilityBuckets := BucketByMonth(liabilitiesByOwner[owner])

		for _, month := range UnionKeys(assetBuckets, liabilityBuckets) {
			key := ownerMonth{owner, month}
			if reported[key] {
				continue
			}
			if seen[key] {
				return nil, fmt.Errorf("%w: user %d month %s", core.ErrDuplicateMonth, owner, month)
			}
			seen[key] = true

			created = append(created, Assemble(nextID, owner, month, assetBuckets.Get(month), liabilityBuckets.Get(month)))
			nextID++
		}
	}
	return created, nil
}

func readReports(ctx context.Context, tx Tx) ([]core.Report, error) {
	rows, err := tx.ReadAll(ctx, core.TableReports)
	if err != nil {
		return nil, &core.StoreError{Op: "read", Table: core.TableReports, Err: err}
	}
	return ParseReports(rows)
}

func readStatements(ctx context.Context, tx Tx, table string) ([]core.Statement, error) {
	rows, err := tx.ReadAll(ctx, table)
	if err != nil {
		return nil, &core.StoreError{Op: "read", Table: table, Err: err}
	}
	return ParseStatements(table, rows)
}

func markUsed(ctx context.Context, tx Tx, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.BulkUpdateFlag(ctx, table, "used", int64(1), ids); err != nil {
		return &core.StoreError{Op: "update", Table: table, Err: err}
	}
	return nil
}

func unused(statements []core.Statement) []core.Statement {
	var out []core.Statement
	for _, s := range statements {
		if !s.Used {
			out = append(out, s)
		}
	}
	return out
}

func ids(statements []core.Statement) []int64 {
	out := make([]int64, 0, len(statements))
	for _, s := range statements {
		out = append(out, s.ID)
	}
	return out
}

func groupByOwner(statements []core.Statement) map[int64][]core.Statement {
	out := make(map[int64][]core.Statement)
	for _, s := range statements {
		out[s.UserID] = append(out[s.UserID], s)
	}
	return out
}

func owners(groups ...map[int64][]core.Statement) []int64 {
	var out []int64
	for _, g := range groups {
		for id := range g {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// IsParseError reports whether err was caused by a malformed stored row.
func IsParseError(err error) bool {
	var pe *core.ParseError
	return errors.As(err, &pe)
}
