package payroll

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"imenu-order-services/internal/apperr"

	"go.uber.org/zap"
)

type memStore struct {
	settings  Settings
	employees []Employee
	attend    map[int64][]AttendanceRow
	totals    map[int64]ExpenseTotals
	payroll   []Row
	expenses  []Expense
	balances  map[int64]float64
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		attend:   map[int64][]AttendanceRow{},
		totals:   map[int64]ExpenseTotals{},
		balances: map[int64]float64{},
	}
}

func (m *memStore) Settings(_ context.Context, _ int64) (Settings, error) { return m.settings, nil }

func (m *memStore) ListEmployees(_ context.Context, restaurantID int64) ([]Employee, error) {
	out := make([]Employee, 0, len(m.employees))
	for _, e := range m.employees {
		if e.RestaurantID == restaurantID {
			e.LoanBalance = m.balances[e.ID]
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListAttendance(_ context.Context, _, employeeID int64, _ string) ([]AttendanceRow, error) {
	return m.attend[employeeID], nil
}

func (m *memStore) ExpenseTotals(_ context.Context, _, employeeID int64, _ string) (ExpenseTotals, error) {
	return m.totals[employeeID], nil
}

func (m *memStore) ListPayroll(_ context.Context, restaurantID int64, month string) ([]Row, error) {
	var out []Row
	for _, r := range m.payroll {
		if r.RestaurantID == restaurantID && r.Month == month {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) InTx(ctx context.Context, _ int64, _ string, fn func(tx TxStore) error) error {
	return fn(&memTx{m})
}

type memTx struct {
	m *memStore
}

func (t *memTx) ListPayroll(ctx context.Context, restaurantID int64, month string) ([]Row, error) {
	return t.m.ListPayroll(ctx, restaurantID, month)
}

func (t *memTx) DeletePayroll(_ context.Context, restaurantID int64, month string) error {
	kept := t.m.payroll[:0]
	for _, r := range t.m.payroll {
		if !(r.RestaurantID == restaurantID && r.Month == month) {
			kept = append(kept, r)
		}
	}
	t.m.payroll = kept
	return nil
}

func (t *memTx) InsertRows(_ context.Context, rows []Row) error {
	for _, r := range rows {
		t.m.nextID++
		r.ID = t.m.nextID
		t.m.payroll = append(t.m.payroll, r)
	}
	return nil
}

func (t *memTx) LoanBalance(_ context.Context, employeeID int64) (float64, error) {
	return t.m.balances[employeeID], nil
}

func (t *memTx) AdjustLoanBalance(_ context.Context, employeeID int64, delta float64) error {
	t.m.balances[employeeID] += delta
	return nil
}

func (t *memTx) MarkApproved(_ context.Context, restaurantID int64, month string, paidAt time.Time) (int64, error) {
	var n int64
	for i := range t.m.payroll {
		r := &t.m.payroll[i]
		if r.RestaurantID == restaurantID && r.Month == month && r.Status == RowPending {
			r.Status = RowApproved
			r.Paid = true
			at := paidAt
			r.PaidAt = &at
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertExpense(_ context.Context, expense Expense) error {
	t.m.expenses = append(t.m.expenses, expense)
	return nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func newTestEngine(store *memStore) *Engine {
	return NewEngine(store, zap.NewNop(), nil)
}

func monthlyEmployee(id int64, base float64) Employee {
	return Employee{
		ID:                id,
		RestaurantID:      1,
		Name:              "Employee",
		SalaryType:        SalaryMonthly,
		BaseSalary:        base,
		StandardWorkHours: 8,
	}
}

func TestGenerateMonthlyComputation(t *testing.T) {
	store := newMemStore()
	store.settings = Settings{AbsencePenaltyDays: 2}
	store.employees = []Employee{monthlyEmployee(1, 3000)}
	store.attend[1] = []AttendanceRow{
		{EmployeeID: 1, Status: AttendancePresent, OvertimeHours: 3},
		{EmployeeID: 1, Status: AttendanceLate, DeductionHours: 1},
		{EmployeeID: 1, Status: AttendanceAbsent},
	}
	store.totals[1] = ExpenseTotals{Bonuses: 50, Deductions: 20}

	rows, err := newTestEngine(store).Generate(context.Background(), 1, "2026-08", Adjustments{}, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]

	// hourly = 3000/30/8 = 12.5, day value = 100
	if !almostEqual(row.BaseAmount, 3000) {
		t.Errorf("BaseAmount = %v, want 3000", row.BaseAmount)
	}
	if !almostEqual(row.OvertimeAmount, 37.5) {
		t.Errorf("OvertimeAmount = %v, want 37.5", row.OvertimeAmount)
	}
	// 1h deduction (12.5) + 1 absent day * 2 penalty days * 100
	if !almostEqual(row.DeductionsTotal, 232.5) {
		t.Errorf("DeductionsTotal = %v, want 232.5", row.DeductionsTotal)
	}
	want := 3000 + 37.5 + 50 - 232.5
	if !almostEqual(row.NetSalary, want) {
		t.Errorf("NetSalary = %v, want %v", row.NetSalary, want)
	}
	if row.Status != RowPending {
		t.Errorf("Status = %q, want Pending", row.Status)
	}
	if len(store.payroll) != 0 {
		t.Fatalf("preview persisted %d rows", len(store.payroll))
	}
}

func TestGenerateDailySalary(t *testing.T) {
	store := newMemStore()
	store.employees = []Employee{{
		ID: 1, RestaurantID: 1, Name: "Daily", SalaryType: SalaryDaily,
		BaseSalary: 120, StandardWorkHours: 8,
	}}
	store.attend[1] = []AttendanceRow{
		{EmployeeID: 1, Status: AttendancePresent},
		{EmployeeID: 1, Status: AttendancePresent, OvertimeHours: 2},
		{EmployeeID: 1, Status: AttendanceAbsent},
		{EmployeeID: 1, Status: AttendanceLate},
	}

	rows, err := newTestEngine(store).Generate(context.Background(), 1, "2026-08", Adjustments{}, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	row := rows[0]
	// 3 worked days (present + late) at 120
	if !almostEqual(row.BaseAmount, 360) {
		t.Errorf("BaseAmount = %v, want 360", row.BaseAmount)
	}
	// hourly = 120/8 = 15
	if !almostEqual(row.OvertimeAmount, 30) {
		t.Errorf("OvertimeAmount = %v, want 30", row.OvertimeAmount)
	}
}

func TestRegenerationReversesLoanDeductions(t *testing.T) {
	store := newMemStore()
	store.employees = []Employee{monthlyEmployee(1, 3000)}
	store.attend[1] = []AttendanceRow{{EmployeeID: 1, Status: AttendancePresent}}
	store.totals[1] = ExpenseTotals{Advances: 200}
	store.balances[1] = 500

	eng := newTestEngine(store)
	if _, err := eng.Generate(context.Background(), 1, "2026-08", Adjustments{}, false); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if !almostEqual(store.balances[1], 300) {
		t.Fatalf("balance after first run = %v, want 300", store.balances[1])
	}

	// regenerate with a different loan deduction; the first run's 200 must
	// come back before the 150 is taken
	adj := Adjustments{LoanDeductions: map[int64]float64{1: 150}}
	rows, err := eng.Generate(context.Background(), 1, "2026-08", adj, false)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !almostEqual(store.balances[1], 350) {
		t.Errorf("balance after regeneration = %v, want 350", store.balances[1])
	}
	if !almostEqual(rows[0].LoansDeducted, 150) {
		t.Errorf("LoansDeducted = %v, want 150", rows[0].LoansDeducted)
	}
	stored, _ := store.ListPayroll(context.Background(), 1, "2026-08")
	if len(stored) != 1 {
		t.Fatalf("stored rows = %d, want 1", len(stored))
	}
}

func TestLoanDeductionCappedAtBalance(t *testing.T) {
	store := newMemStore()
	store.employees = []Employee{monthlyEmployee(1, 3000)}
	store.attend[1] = []AttendanceRow{{EmployeeID: 1, Status: AttendancePresent}}
	store.totals[1] = ExpenseTotals{Advances: 300}
	store.balances[1] = 100

	rows, err := newTestEngine(store).Generate(context.Background(), 1, "2026-08", Adjustments{}, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !almostEqual(rows[0].LoansDeducted, 100) {
		t.Errorf("LoansDeducted = %v, want 100", rows[0].LoansDeducted)
	}
	if !almostEqual(store.balances[1], 0) {
		t.Errorf("balance = %v, want 0", store.balances[1])
	}
}

func TestNetSalaryFlooredAtZero(t *testing.T) {
	store := newMemStore()
	store.employees = []Employee{monthlyEmployee(1, 100)}
	store.totals[1] = ExpenseTotals{Deductions: 500}

	rows, err := newTestEngine(store).Generate(context.Background(), 1, "2026-08", Adjustments{}, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rows[0].NetSalary != 0 {
		t.Errorf("NetSalary = %v, want 0", rows[0].NetSalary)
	}
}

func TestGenerateRejectsBadMonth(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(store)
	for _, month := range []string{"2026-13", "2026-0", "202608", "aug-2026", ""} {
		if _, err := eng.Generate(context.Background(), 1, month, Adjustments{}, true); !apperr.IsValidation(err) {
			t.Errorf("month %q: err = %v, want validation error", month, err)
		}
	}
}

func TestApproveBooksAggregateExpense(t *testing.T) {
	store := newMemStore()
	store.employees = []Employee{monthlyEmployee(1, 1000), monthlyEmployee(2, 2000)}

	eng := newTestEngine(store)
	if _, err := eng.Generate(context.Background(), 1, "2026-08", Adjustments{}, false); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := eng.Approve(context.Background(), 1, "2026-08"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if len(store.expenses) != 1 {
		t.Fatalf("expenses = %d, want 1", len(store.expenses))
	}
	exp := store.expenses[0]
	if exp.Category != ExpenseCategorySalaries {
		t.Errorf("Category = %q, want %q", exp.Category, ExpenseCategorySalaries)
	}
	if !almostEqual(exp.Amount, 3000) {
		t.Errorf("Amount = %v, want 3000", exp.Amount)
	}
	for _, r := range store.payroll {
		if r.Status != RowApproved || !r.Paid || r.PaidAt == nil {
			t.Errorf("row %d not fully approved: %+v", r.EmployeeID, r)
		}
	}
}

func TestApproveTwiceConflicts(t *testing.T) {
	store := newMemStore()
	store.employees = []Employee{monthlyEmployee(1, 1000)}

	eng := newTestEngine(store)
	if _, err := eng.Generate(context.Background(), 1, "2026-08", Adjustments{}, false); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := eng.Approve(context.Background(), 1, "2026-08"); err != nil {
		t.Fatalf("first Approve: %v", err)
	}

	err := eng.Approve(context.Background(), 1, "2026-08")
	var conflict *apperr.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second Approve err = %v, want state conflict", err)
	}
	if len(store.expenses) != 1 {
		t.Errorf("expenses = %d, want 1 (no double booking)", len(store.expenses))
	}
}

func TestApproveEmptyMonthConflicts(t *testing.T) {
	store := newMemStore()
	err := newTestEngine(store).Approve(context.Background(), 1, "2026-08")
	var conflict *apperr.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}
