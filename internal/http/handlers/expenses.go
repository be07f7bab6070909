package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"imenu-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var expenseCategories = map[string]struct{}{
	"supplies":       {},
	"bills":          {},
	"maintenance":    {},
	"rent":           {},
	"salary_advance": {},
	"bonus":          {},
	"deduction":      {},
	"salaries":       {},
	"other":          {},
}

var employeeBoundCategories = map[string]struct{}{
	"salary_advance": {},
	"bonus":          {},
	"deduction":      {},
}

type createExpenseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Category    string  `json:"category" validate:"required"`
	EmployeeID  *int64  `json:"employeeId"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

// ExpenseCreate appends a financial record. A salary advance also debits
// the employee's pocket by crediting their loan balance, in the same
// transaction as the expense row.
func (h *Handler) ExpenseCreate(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	var req createExpenseRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	if _, ok := expenseCategories[category]; !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown expense category")
		return
	}
	if _, bound := employeeBoundCategories[category]; bound && req.EmployeeID == nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "This category requires an employee reference")
		return
	}

	date := time.Now()
	if strings.TrimSpace(req.Date) != "" {
		parsed, perr := time.Parse("2006-01-02", req.Date)
		if perr != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	tx, err := h.DB.Begin(r.Context())
	if err != nil {
		h.Logger.Error("expense tx begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	defer tx.Rollback(r.Context())

	var expenseID int64
	err = tx.QueryRow(r.Context(),
		`insert into expenses (restaurant_id, title, amount, category, employee_id, date, description)
		 values ($1, $2, $3, $4, $5, $6, $7)
		 returning id`,
		restaurantID, strings.TrimSpace(req.Title), req.Amount, category, req.EmployeeID, date, req.Description,
	).Scan(&expenseID)
	if err != nil {
		h.Logger.Error("expense insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	if category == "salary_advance" {
		tag, err := tx.Exec(r.Context(),
			`update employees set loan_balance = loan_balance + $1
			 where id = $2 and restaurant_id = $3`,
			req.Amount, *req.EmployeeID, restaurantID,
		)
		if err != nil || tag.RowsAffected() == 0 {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Employee not found")
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("expense tx commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	response.Created(w, map[string]any{"id": expenseID})
}

// ExpenseDelete removes a record. Deleting a salary advance credits the
// amount back off the employee's loan balance, clamped at zero.
func (h *Handler) ExpenseDelete(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}
	expenseID, err := readPathInt64(r, "expenseId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid expense id")
		return
	}

	tx, err := h.DB.Begin(r.Context())
	if err != nil {
		h.Logger.Error("expense tx begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	defer tx.Rollback(r.Context())

	var (
		category   string
		amount     float64
		employeeID pgtype.Int8
	)
	err = tx.QueryRow(r.Context(),
		`delete from expenses where id = $1 and restaurant_id = $2
		 returning category, amount, employee_id`,
		expenseID, restaurantID,
	).Scan(&category, &amount, &employeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Expense not found")
		return
	}
	if err != nil {
		h.Logger.Error("expense delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	if category == "salary_advance" && employeeID.Valid {
		_, err = tx.Exec(r.Context(),
			`update employees set loan_balance = greatest(loan_balance - $1, 0)
			 where id = $2 and restaurant_id = $3`,
			amount, employeeID.Int64, restaurantID,
		)
		if err != nil {
			h.Logger.Error("loan balance reversal failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("expense tx commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}

func (h *Handler) ExpensesList(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}
	month := strings.TrimSpace(r.URL.Query().Get("month"))

	rows, err := h.DB.Query(r.Context(),
		`select id, title, amount, category, employee_id, date, coalesce(description, '')
		 from expenses
		 where restaurant_id = $1 and ($2 = '' or to_char(date, 'YYYY-MM') = $2)
		 order by date desc, id desc`,
		restaurantID, month,
	)
	if err != nil {
		h.Logger.Error("expenses list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	defer rows.Close()

	type expenseRow struct {
		ID          int64     `json:"id"`
		Title       string    `json:"title"`
		Amount      float64   `json:"amount"`
		Category    string    `json:"category"`
		EmployeeID  *int64    `json:"employeeId,omitempty"`
		Date        time.Time `json:"date"`
		Description string    `json:"description,omitempty"`
	}
	out := make([]expenseRow, 0)
	var total float64
	for rows.Next() {
		var (
			row        expenseRow
			employeeID pgtype.Int8
		)
		if err := rows.Scan(&row.ID, &row.Title, &row.Amount, &row.Category, &employeeID, &row.Date, &row.Description); err != nil {
			h.Logger.Error("expense scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
			return
		}
		if employeeID.Valid {
			row.EmployeeID = &employeeID.Int64
		}
		total += row.Amount
		out = append(out, row)
	}

	response.Success(w, map[string]any{"expenses": out, "total": total})
}
