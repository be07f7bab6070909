package payroll

import (
	"context"
	"time"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/events"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine aggregates attendance and financial records into per-employee
// salary rows. Preview computes without touching anything; commit replaces
// the month's rows and re-applies loan deductions idempotently.
type Engine struct {
	store  Store
	logger *zap.Logger
	events events.Publisher
}

func NewEngine(store Store, logger *zap.Logger, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{store: store, logger: logger, events: publisher}
}

var monthlyDivisor = decimal.NewFromInt(30)

// Generate computes the month's payroll for every employee of the tenant.
// preview returns the rows without persisting or touching loan balances;
// commit runs the reversal-then-reapply sequence as one transaction.
func (e *Engine) Generate(ctx context.Context, restaurantID int64, month string, adj Adjustments, preview bool) ([]Row, error) {
	if restaurantID <= 0 {
		return nil, apperr.Invalid("restaurantId", "restaurant reference is required")
	}
	if !ValidMonth(month) {
		return nil, apperr.Invalid("month", "expected YYYY-MM")
	}

	settings, err := e.store.Settings(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	employees, err := e.store.ListEmployees(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(employees))
	for _, emp := range employees {
		attendance, err := e.store.ListAttendance(ctx, restaurantID, emp.ID, month)
		if err != nil {
			return nil, err
		}
		totals, err := e.store.ExpenseTotals(ctx, restaurantID, emp.ID, month)
		if err != nil {
			return nil, err
		}
		rows = append(rows, computeRow(emp, month, attendance, totals, settings, adj))
	}

	if preview {
		// cap against the live balance for display; commit re-resolves
		for i := range rows {
			loan := rows[i].requestedLoan
			if loan > employees[i].LoanBalance {
				loan = employees[i].LoanBalance
			}
			rows[i] = finalizeLoan(rows[i], loan)
		}
		return rows, nil
	}

	err = e.store.InTx(ctx, restaurantID, month, func(tx TxStore) error {
		prior, err := tx.ListPayroll(ctx, restaurantID, month)
		if err != nil {
			return err
		}
		// reverse the loan effects of the previous run before recomputing,
		// so regeneration is idempotent on cumulative loan balance
		for _, p := range prior {
			if p.LoansDeducted > 0 {
				if err := tx.AdjustLoanBalance(ctx, p.EmployeeID, p.LoansDeducted); err != nil {
					return err
				}
			}
		}
		if err := tx.DeletePayroll(ctx, restaurantID, month); err != nil {
			return err
		}

		for i := range rows {
			loan := rows[i].requestedLoan
			if loan > 0 {
				balance, err := tx.LoanBalance(ctx, rows[i].EmployeeID)
				if err != nil {
					return err
				}
				if loan > balance {
					loan = balance
				}
			}
			rows[i] = finalizeLoan(rows[i], loan)
		}

		if err := tx.InsertRows(ctx, rows); err != nil {
			return err
		}
		for _, row := range rows {
			if row.LoansDeducted > 0 {
				if err := tx.AdjustLoanBalance(ctx, row.EmployeeID, -row.LoansDeducted); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.events.Publish(ctx, restaurantID, events.PayrollGenerated, map[string]any{
		"month":     month,
		"employees": len(rows),
	})
	return rows, nil
}

// computeRow runs steps 1-4 and 6 of the salary computation; the loan cap
// (step 5) is resolved later against the balance that holds at that moment.
func computeRow(emp Employee, month string, attendance []AttendanceRow, totals ExpenseTotals, settings Settings, adj Adjustments) Row {
	var workedDays, absentDays int
	var overtimeHours, deductionHours decimal.Decimal
	for _, a := range attendance {
		switch a.Status {
		case AttendancePresent, AttendanceLate:
			workedDays++
		case AttendanceAbsent:
			absentDays++
		}
		overtimeHours = overtimeHours.Add(decimal.NewFromFloat(a.OvertimeHours))
		deductionHours = deductionHours.Add(decimal.NewFromFloat(a.DeductionHours))
	}

	base := decimal.NewFromFloat(emp.BaseSalary)
	stdHours := decimal.NewFromFloat(emp.StandardWorkHours)

	var baseAmount, hourlyRate, dayValue decimal.Decimal
	switch emp.SalaryType {
	case SalaryDaily:
		// daily base salary is the per-day rate, paid for days worked
		dayValue = base
		baseAmount = base.Mul(decimal.NewFromInt(int64(workedDays)))
		if stdHours.IsPositive() {
			hourlyRate = base.Div(stdHours)
		}
	default:
		dayValue = base.Div(monthlyDivisor)
		baseAmount = base
		if stdHours.IsPositive() {
			hourlyRate = base.Div(monthlyDivisor).Div(stdHours)
		}
	}

	overtimeAmount := overtimeHours.Mul(hourlyRate)
	autoDeduction := deductionHours.Mul(hourlyRate)
	if settings.AbsencePenaltyDays > 0 && absentDays > 0 {
		penalty := decimal.NewFromFloat(settings.AbsencePenaltyDays).
			Mul(decimal.NewFromInt(int64(absentDays))).
			Mul(dayValue)
		autoDeduction = autoDeduction.Add(penalty)
	}

	bonuses := totals.Bonuses
	if v, ok := adj.Bonuses[emp.ID]; ok {
		bonuses = v
	}
	manualDeductions := totals.Deductions
	if v, ok := adj.Deductions[emp.ID]; ok {
		manualDeductions = v
	}
	requestedLoan := totals.Advances
	if v, ok := adj.LoanDeductions[emp.ID]; ok {
		requestedLoan = v
	}

	deductionsTotal := autoDeduction.Add(decimal.NewFromFloat(manualDeductions))

	return Row{
		RestaurantID:    emp.RestaurantID,
		EmployeeID:      emp.ID,
		EmployeeName:    emp.Name,
		Month:           month,
		BaseAmount:      round2(baseAmount),
		OvertimeAmount:  round2(overtimeAmount),
		BonusesTotal:    round2(decimal.NewFromFloat(bonuses)),
		DeductionsTotal: round2(deductionsTotal),
		Status:          RowPending,
		requestedLoan:   requestedLoan,
	}
}

// finalizeLoan applies the resolved loan deduction and derives the net
// salary, floored at zero.
func finalizeLoan(row Row, loan float64) Row {
	if loan < 0 {
		loan = 0
	}
	row.LoansDeducted = round2(decimal.NewFromFloat(loan))

	net := decimal.NewFromFloat(row.BaseAmount).
		Add(decimal.NewFromFloat(row.OvertimeAmount)).
		Add(decimal.NewFromFloat(row.BonusesTotal)).
		Sub(decimal.NewFromFloat(row.DeductionsTotal)).
		Sub(decimal.NewFromFloat(row.LoansDeducted))
	if net.IsNegative() {
		net = decimal.Zero
	}
	row.NetSalary = round2(net)
	return row
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Approve flips the month's Pending rows to Approved/paid and books one
// aggregate salaries expense over the net sum. Net, not gross: advances
// were already expensed when issued.
func (e *Engine) Approve(ctx context.Context, restaurantID int64, month string) error {
	if !ValidMonth(month) {
		return apperr.Invalid("month", "expected YYYY-MM")
	}

	return e.store.InTx(ctx, restaurantID, month, func(tx TxStore) error {
		rows, err := tx.ListPayroll(ctx, restaurantID, month)
		if err != nil {
			return err
		}

		netTotal := decimal.Zero
		pending := 0
		for _, row := range rows {
			if row.Status == RowPending {
				pending++
				netTotal = netTotal.Add(decimal.NewFromFloat(row.NetSalary))
			}
		}
		if pending == 0 {
			return &apperr.StateConflictError{Entity: "payroll", Current: "already approved or empty", Attempt: "approve"}
		}

		now := time.Now()
		if _, err := tx.MarkApproved(ctx, restaurantID, month, now); err != nil {
			return err
		}
		return tx.InsertExpense(ctx, Expense{
			RestaurantID: restaurantID,
			Title:        "Payroll " + month,
			Amount:       round2(netTotal),
			Category:     ExpenseCategorySalaries,
			Date:         now,
			Description:  "Net salaries for " + month,
		})
	})
}

// Rows returns the stored payroll rows for a tenant month.
func (e *Engine) Rows(ctx context.Context, restaurantID int64, month string) ([]Row, error) {
	if !ValidMonth(month) {
		return nil, apperr.Invalid("month", "expected YYYY-MM")
	}
	return e.store.ListPayroll(ctx, restaurantID, month)
}
