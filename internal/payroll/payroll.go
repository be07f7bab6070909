package payroll

import (
	"context"
	"regexp"
	"time"
)

type SalaryType string

const (
	SalaryMonthly SalaryType = "monthly"
	SalaryDaily   SalaryType = "daily"
)

type RowStatus string

const (
	RowPending  RowStatus = "Pending"
	RowApproved RowStatus = "Approved"
)

// Employee carries the configuration the payroll computation needs,
// including the mutable loan balance (always >= 0 by construction: the
// commit path caps every deduction at the current balance).
type Employee struct {
	ID                int64      `json:"id"`
	RestaurantID      int64      `json:"restaurantId"`
	Name              string     `json:"name"`
	JobTitle          string     `json:"jobTitle"`
	SalaryType        SalaryType `json:"salaryType"`
	BaseSalary        float64    `json:"baseSalary"`
	StandardWorkHours float64    `json:"standardWorkHours"`
	ShiftStart        string     `json:"shiftStart"`
	ShiftEnd          string     `json:"shiftEnd"`
	RestDays          []int      `json:"restDays"`
	LoanBalance       float64    `json:"loanBalance"`
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

type AttendanceRow struct {
	EmployeeID     int64            `json:"employeeId"`
	Date           time.Time        `json:"date"`
	Status         AttendanceStatus `json:"status"`
	OvertimeHours  float64          `json:"overtimeHours"`
	DeductionHours float64          `json:"deductionHours"`
}

// ExpenseTotals are this month's financial-record accruals for one
// employee: salary advances (the requested loan-deduction ceiling),
// bonuses, and manual deductions.
type ExpenseTotals struct {
	Advances   float64
	Bonuses    float64
	Deductions float64
}

// Settings are the tenant-level payroll knobs.
type Settings struct {
	AbsencePenaltyDays float64 // extra day-values deducted per absent day
}

// Adjustments optionally override the expense-driven figures per employee.
// An entry present in a map replaces (never adds to) the corresponding
// expense-driven value, so nothing is counted twice.
type Adjustments struct {
	Bonuses        map[int64]float64
	Deductions     map[int64]float64
	LoanDeductions map[int64]float64
}

type Row struct {
	ID              int64      `json:"id"`
	RestaurantID    int64      `json:"restaurantId"`
	EmployeeID      int64      `json:"employeeId"`
	EmployeeName    string     `json:"employeeName"`
	Month           string     `json:"month"` // "2006-01"
	BaseAmount      float64    `json:"baseAmount"`
	OvertimeAmount  float64    `json:"overtimeAmount"`
	BonusesTotal    float64    `json:"bonusesTotal"`
	DeductionsTotal float64    `json:"deductionsTotal"`
	LoansDeducted   float64    `json:"loansDeducted"`
	NetSalary       float64    `json:"netSalary"`
	Status          RowStatus  `json:"status"`
	Paid            bool       `json:"paid"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`

	// requestedLoan is the uncapped ceiling; the commit path resolves the
	// actual deduction against the live balance inside the transaction.
	requestedLoan float64
}

const ExpenseCategorySalaries = "salaries"

// Expense is the aggregate ledger entry booked on payroll approval.
type Expense struct {
	RestaurantID int64
	Title        string
	Amount       float64
	Category     string
	Date         time.Time
	Description  string
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func ValidMonth(month string) bool {
	return monthPattern.MatchString(month)
}

// Store is the read side of the payroll computation plus the transactional
// commit boundary. InTx must serialize concurrent commits for the same
// tenant+month and roll everything back on error.
type Store interface {
	Settings(ctx context.Context, restaurantID int64) (Settings, error)
	ListEmployees(ctx context.Context, restaurantID int64) ([]Employee, error)
	ListAttendance(ctx context.Context, restaurantID, employeeID int64, month string) ([]AttendanceRow, error)
	ExpenseTotals(ctx context.Context, restaurantID, employeeID int64, month string) (ExpenseTotals, error)
	ListPayroll(ctx context.Context, restaurantID int64, month string) ([]Row, error)

	InTx(ctx context.Context, restaurantID int64, month string, fn func(tx TxStore) error) error
}

type TxStore interface {
	ListPayroll(ctx context.Context, restaurantID int64, month string) ([]Row, error)
	DeletePayroll(ctx context.Context, restaurantID int64, month string) error
	InsertRows(ctx context.Context, rows []Row) error
	LoanBalance(ctx context.Context, employeeID int64) (float64, error)
	AdjustLoanBalance(ctx context.Context, employeeID int64, delta float64) error
	MarkApproved(ctx context.Context, restaurantID int64, month string, paidAt time.Time) (int64, error)
	InsertExpense(ctx context.Context, expense Expense) error
}
