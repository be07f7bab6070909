package payroll

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists payroll rows in Postgres. Attendance and expense
// aggregates are computed in SQL so a month's generation is a handful of
// queries regardless of headcount.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Settings(ctx context.Context, restaurantID int64) (Settings, error) {
	var settings Settings
	err := s.db.QueryRow(ctx,
		`select coalesce(absence_penalty_days, 0) from restaurants where id = $1`,
		restaurantID,
	).Scan(&settings.AbsencePenaltyDays)
	if err != nil {
		return Settings{}, fmt.Errorf("load payroll settings: %w", err)
	}
	return settings, nil
}

func (s *PGStore) ListEmployees(ctx context.Context, restaurantID int64) ([]Employee, error) {
	rows, err := s.db.Query(ctx,
		`select id, restaurant_id, name, coalesce(job_title, ''), salary_type, base_salary,
		        standard_work_hours, coalesce(shift_start, ''), coalesce(shift_end, ''),
		        coalesce(rest_days, '{}'), loan_balance
		 from employees
		 where restaurant_id = $1 and active
		 order by id`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.RestaurantID, &e.Name, &e.JobTitle, &e.SalaryType,
			&e.BaseSalary, &e.StandardWorkHours, &e.ShiftStart, &e.ShiftEnd,
			&e.RestDays, &e.LoanBalance); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) ListAttendance(ctx context.Context, restaurantID, employeeID int64, month string) ([]AttendanceRow, error) {
	rows, err := s.db.Query(ctx,
		`select employee_id, date, status, overtime_hours, deduction_hours
		 from attendance
		 where restaurant_id = $1 and employee_id = $2 and to_char(date, 'YYYY-MM') = $3
		 order by date`,
		restaurantID, employeeID, month,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []AttendanceRow
	for rows.Next() {
		var a AttendanceRow
		if err := rows.Scan(&a.EmployeeID, &a.Date, &a.Status, &a.OvertimeHours, &a.DeductionHours); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) ExpenseTotals(ctx context.Context, restaurantID, employeeID int64, month string) (ExpenseTotals, error) {
	var totals ExpenseTotals
	err := s.db.QueryRow(ctx,
		`select
		   coalesce(sum(amount) filter (where category = 'salary_advance'), 0),
		   coalesce(sum(amount) filter (where category = 'bonus'), 0),
		   coalesce(sum(amount) filter (where category = 'deduction'), 0)
		 from expenses
		 where restaurant_id = $1 and employee_id = $2 and to_char(date, 'YYYY-MM') = $3`,
		restaurantID, employeeID, month,
	).Scan(&totals.Advances, &totals.Bonuses, &totals.Deductions)
	if err != nil {
		return ExpenseTotals{}, fmt.Errorf("expense totals: %w", err)
	}
	return totals, nil
}

func (s *PGStore) ListPayroll(ctx context.Context, restaurantID int64, month string) ([]Row, error) {
	return listPayroll(ctx, s.db, restaurantID, month)
}

// InTx serializes commits per tenant+month with an advisory lock so two
// concurrent regenerations cannot interleave their reversal and re-apply
// steps.
func (s *PGStore) InTx(ctx context.Context, restaurantID int64, month string, fn func(tx TxStore) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin payroll tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `select pg_advisory_xact_lock($1)`, payrollLockKey(restaurantID, month)); err != nil {
		return fmt.Errorf("acquire payroll lock: %w", err)
	}

	if err := fn(&pgTxStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func payrollLockKey(restaurantID int64, month string) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "payroll:%d:%s", restaurantID, month)
	return int64(h.Sum64())
}

type pgTxStore struct {
	tx pgx.Tx
}

func (s *pgTxStore) ListPayroll(ctx context.Context, restaurantID int64, month string) ([]Row, error) {
	return listPayroll(ctx, s.tx, restaurantID, month)
}

func (s *pgTxStore) DeletePayroll(ctx context.Context, restaurantID int64, month string) error {
	_, err := s.tx.Exec(ctx,
		`delete from payrolls where restaurant_id = $1 and month = $2`,
		restaurantID, month,
	)
	if err != nil {
		return fmt.Errorf("delete payroll: %w", err)
	}
	return nil
}

func (s *pgTxStore) InsertRows(ctx context.Context, rows []Row) error {
	for _, r := range rows {
		_, err := s.tx.Exec(ctx,
			`insert into payrolls
			   (restaurant_id, employee_id, employee_name, month, base_amount, overtime_amount,
			    bonuses_total, deductions_total, loans_deducted, net_salary, status, paid)
			 values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false)`,
			r.RestaurantID, r.EmployeeID, r.EmployeeName, r.Month, r.BaseAmount, r.OvertimeAmount,
			r.BonusesTotal, r.DeductionsTotal, r.LoansDeducted, r.NetSalary, r.Status,
		)
		if err != nil {
			return fmt.Errorf("insert payroll row: %w", err)
		}
	}
	return nil
}

func (s *pgTxStore) LoanBalance(ctx context.Context, employeeID int64) (float64, error) {
	var balance float64
	err := s.tx.QueryRow(ctx,
		`select loan_balance from employees where id = $1 for update`,
		employeeID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("loan balance: %w", err)
	}
	return balance, nil
}

func (s *pgTxStore) AdjustLoanBalance(ctx context.Context, employeeID int64, delta float64) error {
	_, err := s.tx.Exec(ctx,
		`update employees set loan_balance = loan_balance + $1 where id = $2`,
		delta, employeeID,
	)
	if err != nil {
		return fmt.Errorf("adjust loan balance: %w", err)
	}
	return nil
}

func (s *pgTxStore) MarkApproved(ctx context.Context, restaurantID int64, month string, paidAt time.Time) (int64, error) {
	tag, err := s.tx.Exec(ctx,
		`update payrolls
		 set status = $1, paid = true, paid_at = $2
		 where restaurant_id = $3 and month = $4 and status = $5`,
		RowApproved, paidAt, restaurantID, month, RowPending,
	)
	if err != nil {
		return 0, fmt.Errorf("approve payroll: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgTxStore) InsertExpense(ctx context.Context, expense Expense) error {
	_, err := s.tx.Exec(ctx,
		`insert into expenses (restaurant_id, title, amount, category, date, description)
		 values ($1, $2, $3, $4, $5, $6)`,
		expense.RestaurantID, expense.Title, expense.Amount, expense.Category, expense.Date, expense.Description,
	)
	if err != nil {
		return fmt.Errorf("insert salaries expense: %w", err)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listPayroll(ctx context.Context, q querier, restaurantID int64, month string) ([]Row, error) {
	rows, err := q.Query(ctx,
		`select id, restaurant_id, employee_id, employee_name, month, base_amount, overtime_amount,
		        bonuses_total, deductions_total, loans_deducted, net_salary, status, paid, paid_at
		 from payrolls
		 where restaurant_id = $1 and month = $2
		 order by employee_id`,
		restaurantID, month,
	)
	if err != nil {
		return nil, fmt.Errorf("list payroll: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.RestaurantID, &r.EmployeeID, &r.EmployeeName, &r.Month,
			&r.BaseAmount, &r.OvertimeAmount, &r.BonusesTotal, &r.DeductionsTotal,
			&r.LoansDeducted, &r.NetSalary, &r.Status, &r.Paid, &r.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payroll row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
