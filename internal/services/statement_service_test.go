package services

import (
	"context"
	"errors"
	"testing"

	"financify/internal/core"
	"financify/internal/reports"
	"financify/internal/storage/memory"
)

func newStatement(date, value string) core.Statement {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Statement{Date: d, Description: "statement " + date, Value: core.MustMoney(value)}
}

func TestStatementService_Create(t *testing.T) {
	store := memory.New()
	svc := NewStatementService(store)
	ctx := context.Background()

	st, err := svc.Create(ctx, core.TableAssets, 7, newStatement("2021-01-05", "100.50"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if st.ID == 0 || st.UserID != 7 || st.Used {
		t.Errorf("unexpected statement %+v", st)
	}

	bad := newStatement("2021-01-05", "1")
	bad.Description = " "
	if _, err := svc.Create(ctx, core.TableAssets, 7, bad); !errors.Is(err, core.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	if _, err := svc.Create(ctx, core.TableReports, 7, newStatement("2021-01-05", "1")); err == nil {
		t.Error("expected error for non statement table")
	}

	list, err := svc.List(ctx, core.TableAssets, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("List returned %d statements, want 1", len(list))
	}
	other, _ := svc.List(ctx, core.TableAssets, 8)
	if len(other) != 0 {
		t.Errorf("other owner sees %d statements", len(other))
	}
}

func TestStatementService_Delete(t *testing.T) {
	store := memory.New()
	svc := NewStatementService(store)
	ctx := context.Background()

	mine, _ := svc.Create(ctx, core.TableLiabilities, 1, newStatement("2021-02-01", "50"))
	theirs, _ := svc.Create(ctx, core.TableLiabilities, 2, newStatement("2021-02-01", "60"))
	reported, _ := svc.Create(ctx, core.TableAssets, 1, newStatement("2021-02-01", "70"))
	if _, err := reports.NewPipeline(store).Run(ctx); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	fresh, _ := svc.Create(ctx, core.TableLiabilities, 1, newStatement("2021-03-01", "10"))

	tests := []struct {
		name  string
		table string
		id    int64
		want  error
	}{
		{"unknown id", core.TableLiabilities, 999, core.ErrNotFound},
		{"other owner", core.TableLiabilities, theirs.ID, core.ErrForbidden},
		{"already reported", core.TableAssets, reported.ID, core.ErrConflict},
		{"used liability", core.TableLiabilities, mine.ID, core.ErrConflict},
		{"unused", core.TableLiabilities, fresh.ID, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Delete(ctx, tt.table, 1, tt.id)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Delete: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Delete() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := store.GetStatement(ctx, core.TableLiabilities, fresh.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("deleted statement still present: %v", err)
	}
}

func TestExpenseService(t *testing.T) {
	store := memory.New()
	svc := NewExpenseService(store)
	ctx := context.Background()

	e, err := svc.Create(ctx, 3, core.Expense{
		Date:        core.NewDate(2024, 5, 1),
		Description: "groceries",
		Amount:      core.MustMoney("12.30"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.UserID != 3 {
		t.Errorf("UserID = %d, want 3", e.UserID)
	}

	if _, err := svc.Create(ctx, 3, core.Expense{Description: "no date", Amount: core.MustMoney("1")}); !errors.Is(err, core.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	if err := svc.Delete(ctx, 4, e.ID); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, 3, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err := svc.List(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("List returned %d expenses after delete", len(list))
	}
}
