package handlers

import (
	"errors"
	"net/http"
	"strings"

	"imenu-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
)

type employeeRequest struct {
	Name              string  `json:"name" validate:"required"`
	JobTitle          string  `json:"jobTitle"`
	SalaryType        string  `json:"salaryType" validate:"required,oneof=monthly daily"`
	BaseSalary        float64 `json:"baseSalary" validate:"required,gt=0"`
	StandardWorkHours float64 `json:"standardWorkHours" validate:"required,gt=0"`
	ShiftStart        string  `json:"shiftStart"`
	ShiftEnd          string  `json:"shiftEnd"`
	RestDays          []int   `json:"restDays" validate:"dive,gte=0,lte=6"`
}

func (h *Handler) EmployeeCreate(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	var req employeeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	var id int64
	err = h.DB.QueryRow(r.Context(),
		`insert into employees
		   (restaurant_id, name, job_title, salary_type, base_salary, standard_work_hours,
		    shift_start, shift_end, rest_days, loan_balance, active)
		 values ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, true)
		 returning id`,
		restaurantID, strings.TrimSpace(req.Name), req.JobTitle, req.SalaryType,
		req.BaseSalary, req.StandardWorkHours, req.ShiftStart, req.ShiftEnd, req.RestDays,
	).Scan(&id)
	if err != nil {
		h.Logger.Error("employee insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) EmployeeUpdate(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}
	employeeID, err := readPathInt64(r, "employeeId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid employee id")
		return
	}

	var req employeeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	tag, err := h.DB.Exec(r.Context(),
		`update employees
		 set name = $1, job_title = $2, salary_type = $3, base_salary = $4,
		     standard_work_hours = $5, shift_start = $6, shift_end = $7, rest_days = $8
		 where id = $9 and restaurant_id = $10`,
		strings.TrimSpace(req.Name), req.JobTitle, req.SalaryType, req.BaseSalary,
		req.StandardWorkHours, req.ShiftStart, req.ShiftEnd, req.RestDays,
		employeeID, restaurantID,
	)
	if err != nil {
		h.Logger.Error("employee update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Employee not found")
		return
	}
	response.Success(w, map[string]any{"updated": true})
}

// EmployeeDeactivate soft-deletes: payroll history and the loan balance
// must survive the departure.
func (h *Handler) EmployeeDeactivate(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}
	employeeID, err := readPathInt64(r, "employeeId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid employee id")
		return
	}

	tag, err := h.DB.Exec(r.Context(),
		`update employees set active = false where id = $1 and restaurant_id = $2`,
		employeeID, restaurantID,
	)
	if err != nil {
		h.Logger.Error("employee deactivate failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Employee not found")
		return
	}
	response.Success(w, map[string]any{"deactivated": true})
}

func (h *Handler) EmployeesList(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	rows, err := h.DB.Query(r.Context(),
		`select id, name, coalesce(job_title, ''), salary_type, base_salary,
		        standard_work_hours, coalesce(shift_start, ''), coalesce(shift_end, ''),
		        coalesce(rest_days, '{}'), loan_balance, active
		 from employees
		 where restaurant_id = $1
		 order by name`,
		restaurantID,
	)
	if err != nil {
		h.Logger.Error("employees list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	defer rows.Close()

	type employeeRow struct {
		ID                int64   `json:"id"`
		Name              string  `json:"name"`
		JobTitle          string  `json:"jobTitle,omitempty"`
		SalaryType        string  `json:"salaryType"`
		BaseSalary        float64 `json:"baseSalary"`
		StandardWorkHours float64 `json:"standardWorkHours"`
		ShiftStart        string  `json:"shiftStart,omitempty"`
		ShiftEnd          string  `json:"shiftEnd,omitempty"`
		RestDays          []int   `json:"restDays"`
		LoanBalance       float64 `json:"loanBalance"`
		Active            bool    `json:"active"`
	}
	out := make([]employeeRow, 0)
	for rows.Next() {
		var row employeeRow
		if err := rows.Scan(&row.ID, &row.Name, &row.JobTitle, &row.SalaryType, &row.BaseSalary,
			&row.StandardWorkHours, &row.ShiftStart, &row.ShiftEnd, &row.RestDays,
			&row.LoanBalance, &row.Active); err != nil {
			h.Logger.Error("employee scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
			return
		}
		out = append(out, row)
	}

	response.Success(w, map[string]any{"employees": out})
}

func (h *Handler) EmployeeGet(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}
	employeeID, err := readPathInt64(r, "employeeId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid employee id")
		return
	}

	var (
		name, jobTitle, salaryType, shiftStart, shiftEnd string
		baseSalary, stdHours, loanBalance                float64
		restDays                                         []int32
		active                                           bool
	)
	err = h.DB.QueryRow(r.Context(),
		`select name, coalesce(job_title, ''), salary_type, base_salary, standard_work_hours,
		        coalesce(shift_start, ''), coalesce(shift_end, ''), coalesce(rest_days, '{}'),
		        loan_balance, active
		 from employees
		 where id = $1 and restaurant_id = $2`,
		employeeID, restaurantID,
	).Scan(&name, &jobTitle, &salaryType, &baseSalary, &stdHours,
		&shiftStart, &shiftEnd, &restDays, &loanBalance, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Employee not found")
		return
	}
	if err != nil {
		h.Logger.Error("employee get failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	response.Success(w, map[string]any{
		"id":                employeeID,
		"name":              name,
		"jobTitle":          jobTitle,
		"salaryType":        salaryType,
		"baseSalary":        baseSalary,
		"standardWorkHours": stdHours,
		"shiftStart":        shiftStart,
		"shiftEnd":          shiftEnd,
		"restDays":          int32sToInts(restDays),
		"loanBalance":       loanBalance,
		"active":            active,
	})
}
