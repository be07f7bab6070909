package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const orderColumns = `id, restaurant_id, order_num, table_number, customer_name, customer_phone,
	items, sub_total, tax_amount, service_amount, discount_amount, coupon_code, total_price,
	status, note, created_by, stock_deducted, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o          Order
		itemsJSON  []byte
		subTotal   pgtype.Numeric
		tax        pgtype.Numeric
		service    pgtype.Numeric
		discount   pgtype.Numeric
		total      pgtype.Numeric
		status     string
		couponCode *string
	)
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.OrderNum, &o.TableNumber, &o.CustomerName, &o.CustomerPhone,
		&itemsJSON, &subTotal, &tax, &service, &discount, &couponCode, &total,
		&status, &o.Note, &o.CreatedBy, &o.StockDeducted, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, err
	}
	o.SubTotal = utils.NumericToFloat64(subTotal)
	o.TaxAmount = utils.NumericToFloat64(tax)
	o.ServiceAmount = utils.NumericToFloat64(service)
	o.DiscountAmount = utils.NumericToFloat64(discount)
	o.TotalPrice = utils.NumericToFloat64(total)
	o.Status = Status(status)
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	return &o, nil
}

func (s *PGStore) Get(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(s.db.QueryRow(ctx, `select `+orderColumns+` from orders where id = $1`, id))
}

func (s *PGStore) findOpen(ctx context.Context, where string, args ...any) (*Order, error) {
	order, err := scanOrder(s.db.QueryRow(ctx, `
		select `+orderColumns+` from orders
		where status in ('pending','preparing') and `+where+`
		order by created_at desc
		limit 1
	`, args...))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return order, err
}

func (s *PGStore) FindOpenByNumber(ctx context.Context, restaurantID, orderNum int64) (*Order, error) {
	return s.findOpen(ctx, `restaurant_id = $1 and order_num = $2`, restaurantID, orderNum)
}

func (s *PGStore) FindOpenByTable(ctx context.Context, restaurantID int64, table string) (*Order, error) {
	return s.findOpen(ctx, `restaurant_id = $1 and table_number = $2`, restaurantID, table)
}

func (s *PGStore) FindOpenTakeaway(ctx context.Context, restaurantID int64, phone, name string) (*Order, error) {
	if phone != "" {
		order, err := s.findOpen(ctx, `restaurant_id = $1 and table_number = $2 and customer_phone = $3`, restaurantID, TableTakeaway, phone)
		if order != nil || err != nil {
			return order, err
		}
	}
	if name != "" {
		return s.findOpen(ctx, `restaurant_id = $1 and table_number = $2 and customer_name = $3`, restaurantID, TableTakeaway, name)
	}
	return nil, nil
}

func (s *PGStore) NextOrderNumber(ctx context.Context, restaurantID int64) (int64, error) {
	var value int64
	err := s.db.QueryRow(ctx, `
		insert into order_counters (restaurant_id, value) values ($1, 1)
		on conflict (restaurant_id) do update set value = order_counters.value + 1
		returning value
	`, restaurantID).Scan(&value)
	return value, err
}

func (s *PGStore) Create(ctx context.Context, order *Order) (*Order, error) {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}
	return scanOrder(s.db.QueryRow(ctx, `
		insert into orders (
			restaurant_id, order_num, table_number, customer_name, customer_phone,
			items, sub_total, tax_amount, service_amount, discount_amount, coupon_code, total_price,
			status, note, created_by, updated_at
		)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, nullif($11,''), $12,$13,$14,$15, now())
		returning `+orderColumns+`
	`,
		order.RestaurantID, order.OrderNum, order.TableNumber, order.CustomerName, order.CustomerPhone,
		itemsJSON, order.SubTotal, order.TaxAmount, order.ServiceAmount, order.DiscountAmount,
		order.CouponCode, order.TotalPrice, string(order.Status), order.Note, order.CreatedBy,
	))
}

// AppendItems is a single guarded statement, keeping concurrent merges from
// clobbering each other between a read and a write.
func (s *PGStore) AppendItems(ctx context.Context, orderID int64, items []LineItem, addSubTotal, addTotal float64, note string) (*Order, error) {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	order, err := scanOrder(s.db.QueryRow(ctx, `
		update orders
		set items = items || $2::jsonb,
		    sub_total = sub_total + $3,
		    total_price = total_price + $4,
		    note = case when $5 = '' then note
		                when note = '' then $5
		                else note || ' | ' || $5 end,
		    updated_at = now()
		where id = $1 and status in ('pending','preparing')
		returning `+orderColumns+`
	`, orderID, itemsJSON, addSubTotal, addTotal, strings.TrimSpace(note)))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return order, err
}

func (s *PGStore) ReplaceItems(ctx context.Context, orderID int64, items []LineItem, totals Totals) (*Order, error) {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	order, err := scanOrder(s.db.QueryRow(ctx, `
		update orders
		set items = $2::jsonb,
		    sub_total = $3, tax_amount = $4, service_amount = $5,
		    discount_amount = $6, total_price = $7,
		    updated_at = now()
		where id = $1 and status = 'pending'
		returning `+orderColumns+`
	`, orderID, itemsJSON, totals.SubTotal, totals.TaxAmount, totals.ServiceAmount, totals.DiscountAmount, totals.TotalPrice))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return order, err
}

func (s *PGStore) AdvanceStatus(ctx context.Context, orderID int64, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		update orders set status = $3, updated_at = now()
		where id = $1 and status = $2
	`, orderID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) ClaimStockDeduction(ctx context.Context, orderID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		update orders set stock_deducted = true
		where id = $1 and not stock_deducted
	`, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) History(ctx context.Context, filter HistoryFilter) ([]Order, error) {
	query := `
		select ` + orderColumns + ` from orders
		where restaurant_id = $1 and status in ('completed','canceled')
	`
	args := []any{filter.RestaurantID}

	if filter.StartDate != nil && filter.EndDate != nil {
		query += ` and created_at >= $` + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartDate)
		query += ` and created_at <= $` + strconv.Itoa(len(args)+1)
		args = append(args, *filter.EndDate)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		if num, err := strconv.ParseInt(search, 10, 64); err == nil {
			query += ` and (order_num = $` + strconv.Itoa(len(args)+1)
			args = append(args, num)
			query += ` or table_number = $` + strconv.Itoa(len(args)+1) + `)`
			args = append(args, search)
		} else {
			query += ` and table_number = $` + strconv.Itoa(len(args)+1)
			args = append(args, search)
		}
	}

	query += ` order by created_at desc`
	return s.queryOrders(ctx, query, args...)
}

func (s *PGStore) ListActive(ctx context.Context, restaurantID int64) ([]Order, error) {
	return s.queryOrders(ctx, `
		select `+orderColumns+` from orders
		where restaurant_id = $1 and status in ('pending','preparing')
		order by created_at desc
	`, restaurantID)
}

func (s *PGStore) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	return out, rows.Err()
}

func (s *PGStore) IncrementCouponUsage(ctx context.Context, restaurantID int64, code string) error {
	_, err := s.db.Exec(ctx, `
		update coupons set used_count = used_count + 1
		where restaurant_id = $1 and code = $2
	`, restaurantID, strings.ToUpper(code))
	return err
}

func (s *PGStore) ResolveProduct(ctx context.Context, restaurantID int64, productID *int64, name string) (*Product, error) {
	var product Product
	var err error
	if productID != nil {
		err = s.db.QueryRow(ctx, `
			select id, name from products where id = $1 and restaurant_id = $2
		`, *productID, restaurantID).Scan(&product.ID, &product.Name)
	} else {
		err = pgx.ErrNoRows
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// legacy items carry no product reference; fall back to name match
		err = s.db.QueryRow(ctx, `
			select id, name from products
			where restaurant_id = $1 and (name = $2 or name_ar = $2)
			limit 1
		`, restaurantID, name).Scan(&product.ID, &product.Name)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		select stock_item_id, quantity_per_unit
		from product_ingredients where product_id = $1
	`, product.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ing Ingredient
		var qty pgtype.Numeric
		if err := rows.Scan(&ing.StockItemID, &qty); err != nil {
			return nil, err
		}
		ing.QuantityPerUnit = utils.NumericToFloat64(qty)
		product.Ingredients = append(product.Ingredients, ing)
	}
	return &product, rows.Err()
}
