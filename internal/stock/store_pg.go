package stock

import (
	"context"
	"errors"

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

const itemColumns = `id, restaurant_id, name, quantity, unit, cost_per_unit, alert_level, last_updated`

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	var quantity, costPerUnit, alertLevel pgtype.Numeric
	err := row.Scan(&item.ID, &item.RestaurantID, &item.Name, &quantity, &item.Unit, &costPerUnit, &alertLevel, &item.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	item.Quantity = utils.NumericToFloat64(quantity)
	item.CostPerUnit = utils.NumericToFloat64(costPerUnit)
	item.AlertLevel = utils.NumericToFloat64(alertLevel)
	return &item, nil
}

func (s *PGStore) CreateItem(ctx context.Context, item *Item) (*Item, error) {
	row := s.db.QueryRow(ctx, `
		insert into stock_items (restaurant_id, name, quantity, unit, cost_per_unit, alert_level, last_updated)
		values ($1,$2,$3,$4,$5,$6, now())
		returning `+itemColumns+`
	`, item.RestaurantID, item.Name, item.Quantity, item.Unit, item.CostPerUnit, item.AlertLevel)
	return scanItem(row)
}

func (s *PGStore) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRow(ctx, `select `+itemColumns+` from stock_items where id = $1`, id)
	return scanItem(row)
}

func (s *PGStore) ListItems(ctx context.Context, restaurantID int64) ([]Item, error) {
	rows, err := s.db.Query(ctx, `select `+itemColumns+` from stock_items where restaurant_id = $1 order by name`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *PGStore) DeleteItem(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `delete from stock_items where id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *PGStore) AdjustQuantity(ctx context.Context, id int64, delta float64) (*Item, error) {
	row := s.db.QueryRow(ctx, `
		update stock_items
		set quantity = quantity + $1, last_updated = now()
		where id = $2
		returning `+itemColumns+`
	`, delta, id)
	return scanItem(row)
}

func (s *PGStore) AppendLog(ctx context.Context, log Log) error {
	_, err := s.db.Exec(ctx, `
		insert into stock_logs (restaurant_id, stock_item_id, item_name, change_amount, type, order_id, date)
		values ($1,$2,$3,$4,$5,$6, now())
	`, log.RestaurantID, log.StockItemID, log.ItemName, log.ChangeAmount, string(log.Type), log.OrderID)
	return err
}

func (s *PGStore) ListLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	query := `
		select id, restaurant_id, stock_item_id, item_name, change_amount, type, order_id, date
		from stock_logs
		where restaurant_id = $1
	`
	args := []any{filter.RestaurantID}
	if filter.StartDate != nil && filter.EndDate != nil {
		query += ` and date >= $2 and date <= $3`
		args = append(args, *filter.StartDate, *filter.EndDate)
	}
	query += ` order by date desc`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]Log, 0)
	for rows.Next() {
		var log Log
		var amount pgtype.Numeric
		var changeType string
		if err := rows.Scan(&log.ID, &log.RestaurantID, &log.StockItemID, &log.ItemName, &amount, &changeType, &log.OrderID, &log.Date); err != nil {
			return nil, err
		}
		log.ChangeAmount = utils.NumericToFloat64(amount)
		log.Type = ChangeType(changeType)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
