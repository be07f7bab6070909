package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"imenu-order-services/internal/payroll"
	"imenu-order-services/pkg/response"
)

type generatePayrollRequest struct {
	Month          string            `json:"month" validate:"required"`
	Preview        bool              `json:"preview"`
	Bonuses        map[int64]float64 `json:"bonuses"`
	Deductions     map[int64]float64 `json:"deductions"`
	LoanDeductions map[int64]float64 `json:"loanDeductions"`
}

func (h *Handler) PayrollGenerate(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	var req generatePayrollRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	adj := payroll.Adjustments{
		Bonuses:        req.Bonuses,
		Deductions:     req.Deductions,
		LoanDeductions: req.LoanDeductions,
	}
	rows, err := h.Payroll.Generate(r.Context(), restaurantID, req.Month, adj, req.Preview)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"payroll": rows, "preview": req.Preview})
}

type approvePayrollRequest struct {
	Month string `json:"month" validate:"required"`
}

func (h *Handler) PayrollApprove(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	var req approvePayrollRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.Payroll.Approve(r.Context(), restaurantID, req.Month); err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"approved": true, "month": req.Month})
}

func (h *Handler) PayrollList(w http.ResponseWriter, r *http.Request) {
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
	rows, err := h.Payroll.Rows(r.Context(), restaurantID, month)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	response.Success(w, map[string]any{"payroll": rows})
}

// PayrollPayslipPDF renders one employee's payslip for the month.
func (h *Handler) PayrollPayslipPDF(w http.ResponseWriter, r *http.Request) {
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
	month := strings.TrimSpace(r.URL.Query().Get("month"))

	rows, err := h.Payroll.Rows(r.Context(), restaurantID, month)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	var row *payroll.Row
	for i := range rows {
		if rows[i].EmployeeID == employeeID {
			row = &rows[i]
			break
		}
	}
	if row == nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "No payroll row for this employee and month")
		return
	}

	var restaurantName, jobTitle string
	_ = h.DB.QueryRow(r.Context(),
		`select r.name, coalesce(e.job_title, '')
		 from restaurants r
		 join employees e on e.restaurant_id = r.id
		 where r.id = $1 and e.id = $2`,
		restaurantID, employeeID,
	).Scan(&restaurantName, &jobTitle)

	buf, err := payroll.RenderPayslipPDF(payroll.PayslipData{
		RestaurantName: restaurantName,
		Row:            *row,
		JobTitle:       jobTitle,
	})
	if err != nil {
		h.Logger.Error("payslip render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	filename := fmt.Sprintf("payslip_%s_%d.pdf", sanitizeFilename(month), employeeID)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(buf.Bytes())
}

var filenameRE = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeFilename(value string) string {
	return strings.Trim(filenameRE.ReplaceAllString(value, "_"), "_")
}
