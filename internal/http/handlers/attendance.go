package handlers

import (
	"net/http"
	"strings"
	"time"

	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/utils"
	"imenu-order-services/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type checkInRequest struct {
	EmployeeID int64 `json:"employeeId" validate:"required,gt=0"`
}

// AttendanceCheckIn upserts today's attendance row. An employee clocking
// in after their shift start is marked late; a second check-in the same
// day is a no-op.
func (h *Handler) AttendanceCheckIn(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	var req checkInRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	tz := h.restaurantTimezone(r, restaurantID)
	loc := utils.LocationOrUTC(tz)
	now := time.Now().In(loc)
	today := now.Format("2006-01-02")

	var shiftStart, shiftEnd pgtype.Text
	err = h.DB.QueryRow(r.Context(),
		`select shift_start, shift_end from employees where id = $1 and restaurant_id = $2`,
		req.EmployeeID, restaurantID,
	).Scan(&shiftStart, &shiftEnd)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Employee not found")
		return
	}

	status := "present"
	if shiftStart.Valid && strings.TrimSpace(shiftStart.String) != "" {
		window := auth.ShiftWindow{Start: shiftStart.String, End: shiftEnd.String}
		if auth.LateForShift(now, loc, window) {
			status = "late"
		}
	}

	_, err = h.DB.Exec(r.Context(),
		`insert into attendance (restaurant_id, employee_id, date, status, check_in)
		 values ($1, $2, $3, $4, $5)
		 on conflict (restaurant_id, employee_id, date) do nothing`,
		restaurantID, req.EmployeeID, today, status, now,
	)
	if err != nil {
		h.Logger.Error("attendance check-in failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	response.Success(w, map[string]any{"date": today, "status": status, "checkIn": now})
}

type checkOutRequest struct {
	EmployeeID int64 `json:"employeeId" validate:"required,gt=0"`
}

// AttendanceCheckOut completes today's row and derives overtime and
// deduction hours against the employee's standard work hours.
func (h *Handler) AttendanceCheckOut(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	var req checkOutRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	tz := h.restaurantTimezone(r, restaurantID)
	loc := utils.LocationOrUTC(tz)
	now := time.Now().In(loc)
	today := now.Format("2006-01-02")

	var (
		checkIn  pgtype.Timestamptz
		stdHours float64
	)
	err = h.DB.QueryRow(r.Context(),
		`select a.check_in, e.standard_work_hours
		 from attendance a
		 join employees e on e.id = a.employee_id
		 where a.restaurant_id = $1 and a.employee_id = $2 and a.date = $3`,
		restaurantID, req.EmployeeID, today,
	).Scan(&checkIn, &stdHours)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "No check-in found for today")
		return
	}
	if !checkIn.Valid {
		response.Error(w, http.StatusConflict, "STATE_CONFLICT", "Employee has not checked in today")
		return
	}

	worked := now.Sub(checkIn.Time).Hours()
	var overtime, deduction float64
	if stdHours > 0 {
		if worked > stdHours {
			overtime = utils.Round2(worked - stdHours)
		} else {
			deduction = utils.Round2(stdHours - worked)
		}
	}

	_, err = h.DB.Exec(r.Context(),
		`update attendance
		 set check_out = $1, overtime_hours = $2, deduction_hours = $3
		 where restaurant_id = $4 and employee_id = $5 and date = $6`,
		now, overtime, deduction, restaurantID, req.EmployeeID, today,
	)
	if err != nil {
		h.Logger.Error("attendance check-out failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}

	response.Success(w, map[string]any{
		"date":           today,
		"checkOut":       now,
		"overtimeHours":  overtime,
		"deductionHours": deduction,
	})
}

func (h *Handler) AttendanceList(w http.ResponseWriter, r *http.Request) {
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
		`select a.employee_id, e.name, a.date, a.status, a.check_in, a.check_out,
		        a.overtime_hours, a.deduction_hours
		 from attendance a
		 join employees e on e.id = a.employee_id
		 where a.restaurant_id = $1 and ($2 = '' or to_char(a.date, 'YYYY-MM') = $2)
		 order by a.date desc, e.name`,
		restaurantID, month,
	)
	if err != nil {
		h.Logger.Error("attendance list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	defer rows.Close()

	type attendanceRow struct {
		EmployeeID     int64      `json:"employeeId"`
		EmployeeName   string     `json:"employeeName"`
		Date           time.Time  `json:"date"`
		Status         string     `json:"status"`
		CheckIn        *time.Time `json:"checkIn,omitempty"`
		CheckOut       *time.Time `json:"checkOut,omitempty"`
		OvertimeHours  float64    `json:"overtimeHours"`
		DeductionHours float64    `json:"deductionHours"`
	}
	out := make([]attendanceRow, 0)
	for rows.Next() {
		var (
			row      attendanceRow
			checkIn  pgtype.Timestamptz
			checkOut pgtype.Timestamptz
		)
		if err := rows.Scan(&row.EmployeeID, &row.EmployeeName, &row.Date, &row.Status,
			&checkIn, &checkOut, &row.OvertimeHours, &row.DeductionHours); err != nil {
			h.Logger.Error("attendance scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
			return
		}
		if checkIn.Valid {
			row.CheckIn = &checkIn.Time
		}
		if checkOut.Valid {
			row.CheckOut = &checkOut.Time
		}
		out = append(out, row)
	}

	response.Success(w, map[string]any{"attendance": out})
}

type markAbsentRequest struct {
	EmployeeID int64  `json:"employeeId" validate:"required,gt=0"`
	Date       string `json:"date" validate:"required"`
}

// AttendanceMarkAbsent records an absence for a past or current date.
func (h *Handler) AttendanceMarkAbsent(w http.ResponseWriter, r *http.Request) {
	ac, ok := mustAuth(w, r)
	if !ok {
		return
	}
	restaurantID, err := h.resolveRestaurantID(r, ac)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_PARAM", "A restaurant reference is required")
		return
	}

	var req markAbsentRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
		return
	}

	_, err = h.DB.Exec(r.Context(),
		`insert into attendance (restaurant_id, employee_id, date, status)
		 values ($1, $2, $3, 'absent')
		 on conflict (restaurant_id, employee_id, date)
		 do update set status = 'absent', check_in = null, check_out = null,
		               overtime_hours = 0, deduction_hours = 0`,
		restaurantID, req.EmployeeID, req.Date,
	)
	if err != nil {
		h.Logger.Error("mark absent failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	response.Success(w, map[string]any{"date": req.Date, "status": "absent"})
}
