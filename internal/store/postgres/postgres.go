package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
	"github.com/Miglio04/OREKA-BACKEND/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS processed_files (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			file_type TEXT NOT NULL,
			record_kind TEXT NOT NULL DEFAULT '',
			processed_at TIMESTAMPTZ NOT NULL,
			record_count INT NOT NULL DEFAULT 0,
			skipped_count INT NOT NULL DEFAULT 0,
			columns JSONB NOT NULL DEFAULT '[]',
			page_count INT NOT NULL DEFAULT 0,
			invoice_info JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS pos_lines (
			id BIGSERIAL PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES processed_files(id),
			ts TIMESTAMPTZ NOT NULL,
			item_type TEXT NOT NULL,
			item_name TEXT NOT NULL,
			quantity INT NOT NULL,
			price_per_item NUMERIC(18,4) NOT NULL,
			total_price NUMERIC(18,4) NOT NULL,
			payment_method TEXT NOT NULL,
			area TEXT NOT NULL,
			receipt_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sales_invoices (
			id BIGSERIAL PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES processed_files(id),
			invoice_date TIMESTAMPTZ NOT NULL,
			amount NUMERIC(18,4) NOT NULL,
			area TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_invoices (
			id BIGSERIAL PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES processed_files(id),
			invoice_date TIMESTAMPTZ NOT NULL,
			amount NUMERIC(18,4) NOT NULL,
			category TEXT NOT NULL,
			area TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS labor_costs (
			id BIGSERIAL PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES processed_files(id),
			cost_date TIMESTAMPTZ NOT NULL,
			amount NUMERIC(18,4) NOT NULL,
			area TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS fixed_costs (
			id BIGSERIAL PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES processed_files(id),
			cost_date TIMESTAMPTZ NOT NULL,
			amount NUMERIC(18,4) NOT NULL,
			cost_type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_snapshots (
			id BIGSERIAL PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES processed_files(id),
			snapshot_date TIMESTAMPTZ NOT NULL,
			stock_value NUMERIC(18,4) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS capital_snapshots (
			id BIGSERIAL PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES processed_files(id),
			snapshot_date TIMESTAMPTZ NOT NULL,
			capital_value NUMERIC(18,4) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS price_list (
			item_name TEXT PRIMARY KEY,
			theoretical_price NUMERIC(18,4) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reorder_levels (
			item_name TEXT PRIMARY KEY,
			reorder_level INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_files_processed_at ON processed_files (processed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_pos_lines_receipt ON pos_lines (receipt_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveProcessedFile(ctx context.Context, file domain.ProcessedFile) (*domain.ProcessedFile, error) {
	if file.FileName == "" || file.FileType == "" {
		return nil, store.ErrInvalidFile
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.ProcessedAt.IsZero() {
		file.ProcessedAt = time.Now().UTC()
	}

	columns, err := json.Marshal(file.Columns)
	if err != nil {
		return nil, err
	}
	var invoiceInfo any
	if file.InvoiceInfo != nil {
		payload, err := json.Marshal(file.InvoiceInfo)
		if err != nil {
			return nil, err
		}
		invoiceInfo = string(payload)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processed_files (id, file_name, file_type, record_kind, processed_at, record_count, skipped_count, columns, page_count, invoice_info)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, file.ID, file.FileName, file.FileType, file.RecordKind, file.ProcessedAt, file.RecordCount, file.SkippedCount, string(columns), file.PageCount, invoiceInfo)
	if err != nil {
		return nil, err
	}

	saved := file
	return &saved, nil
}

func scanProcessedFile(scan func(dest ...any) error) (domain.ProcessedFile, error) {
	var (
		file        domain.ProcessedFile
		columns     []byte
		invoiceInfo sql.NullString
	)
	if err := scan(&file.ID, &file.FileName, &file.FileType, &file.RecordKind, &file.ProcessedAt, &file.RecordCount, &file.SkippedCount, &columns, &file.PageCount, &invoiceInfo); err != nil {
		return domain.ProcessedFile{}, err
	}
	if len(columns) > 0 {
		if err := json.Unmarshal(columns, &file.Columns); err != nil {
			return domain.ProcessedFile{}, err
		}
	}
	if invoiceInfo.Valid {
		var info domain.InvoiceExtraction
		if err := json.Unmarshal([]byte(invoiceInfo.String), &info); err != nil {
			return domain.ProcessedFile{}, err
		}
		file.InvoiceInfo = &info
	}
	return file, nil
}

func (s *Store) GetProcessedFile(ctx context.Context, id string) (*domain.ProcessedFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_name, file_type, record_kind, processed_at, record_count, skipped_count, columns, page_count, invoice_info
		FROM processed_files
		WHERE id = $1
	`, id)

	file, err := scanProcessedFile(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

func (s *Store) ListProcessedFiles(ctx context.Context, limit int) ([]domain.ProcessedFile, error) {
	query := `
		SELECT id, file_name, file_type, record_kind, processed_at, record_count, skipped_count, columns, page_count, invoice_info
		FROM processed_files
		ORDER BY processed_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]domain.ProcessedFile, 0, 32)
	for rows.Next() {
		file, err := scanProcessedFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *Store) AppendPOSLines(ctx context.Context, fileID string, lines []domain.POSLine) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, line := range lines {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pos_lines (file_id, ts, item_type, item_name, quantity, price_per_item, total_price, payment_method, area, receipt_id)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`, fileID, line.Timestamp, string(line.ItemType), line.ItemName, line.Quantity, line.PricePerItem, line.TotalPrice, string(line.PaymentMethod), string(line.Area), line.ReceiptID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListPOSLines(ctx context.Context) ([]domain.POSLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, item_type, item_name, quantity, price_per_item, total_price, payment_method, area, receipt_id
		FROM pos_lines
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.POSLine, 0, 256)
	for rows.Next() {
		var (
			line                  domain.POSLine
			itemType, payment, area string
		)
		if err := rows.Scan(&line.Timestamp, &itemType, &line.ItemName, &line.Quantity, &line.PricePerItem, &line.TotalPrice, &payment, &area, &line.ReceiptID); err != nil {
			return nil, err
		}
		line.ItemType = domain.ItemType(itemType)
		line.PaymentMethod = domain.PaymentMethod(payment)
		line.Area = domain.Area(area)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) AppendSalesInvoices(ctx context.Context, fileID string, invoices []domain.SalesInvoice) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, inv := range invoices {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sales_invoices (file_id, invoice_date, amount, area)
				VALUES ($1,$2,$3,$4)
			`, fileID, inv.Date, inv.Amount, string(inv.Area))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListSalesInvoices(ctx context.Context) ([]domain.SalesInvoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT invoice_date, amount, area FROM sales_invoices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.SalesInvoice, 0, 64)
	for rows.Next() {
		var (
			inv  domain.SalesInvoice
			area string
		)
		if err := rows.Scan(&inv.Date, &inv.Amount, &area); err != nil {
			return nil, err
		}
		inv.Area = domain.Area(area)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *Store) AppendPurchaseInvoices(ctx context.Context, fileID string, invoices []domain.PurchaseInvoice) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, inv := range invoices {
			var area any
			if inv.Area != nil {
				area = string(*inv.Area)
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO purchase_invoices (file_id, invoice_date, amount, category, area)
				VALUES ($1,$2,$3,$4,$5)
			`, fileID, inv.Date, inv.Amount, string(inv.Category), area)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListPurchaseInvoices(ctx context.Context) ([]domain.PurchaseInvoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT invoice_date, amount, category, area FROM purchase_invoices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.PurchaseInvoice, 0, 64)
	for rows.Next() {
		var (
			inv      domain.PurchaseInvoice
			category string
			area     sql.NullString
		)
		if err := rows.Scan(&inv.Date, &inv.Amount, &category, &area); err != nil {
			return nil, err
		}
		inv.Category = domain.ItemType(category)
		if area.Valid {
			parsed := domain.Area(area.String)
			inv.Area = &parsed
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *Store) AppendLaborCosts(ctx context.Context, fileID string, costs []domain.LaborCost) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, cost := range costs {
			var area any
			if cost.Area != nil {
				area = string(*cost.Area)
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO labor_costs (file_id, cost_date, amount, area)
				VALUES ($1,$2,$3,$4)
			`, fileID, cost.Date, cost.Amount, area)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListLaborCosts(ctx context.Context) ([]domain.LaborCost, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cost_date, amount, area FROM labor_costs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	costs := make([]domain.LaborCost, 0, 64)
	for rows.Next() {
		var (
			cost domain.LaborCost
			area sql.NullString
		)
		if err := rows.Scan(&cost.Date, &cost.Amount, &area); err != nil {
			return nil, err
		}
		if area.Valid {
			parsed := domain.Area(area.String)
			cost.Area = &parsed
		}
		costs = append(costs, cost)
	}
	return costs, rows.Err()
}

func (s *Store) AppendFixedCosts(ctx context.Context, fileID string, costs []domain.FixedCost) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, cost := range costs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO fixed_costs (file_id, cost_date, amount, cost_type)
				VALUES ($1,$2,$3,$4)
			`, fileID, cost.Date, cost.Amount, string(cost.CostType))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListFixedCosts(ctx context.Context) ([]domain.FixedCost, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cost_date, amount, cost_type FROM fixed_costs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	costs := make([]domain.FixedCost, 0, 64)
	for rows.Next() {
		var (
			cost     domain.FixedCost
			costType string
		)
		if err := rows.Scan(&cost.Date, &cost.Amount, &costType); err != nil {
			return nil, err
		}
		cost.CostType = domain.CostType(costType)
		costs = append(costs, cost)
	}
	return costs, rows.Err()
}

func (s *Store) AppendInventorySnapshots(ctx context.Context, fileID string, snapshots []domain.InventorySnapshot) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, snap := range snapshots {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO inventory_snapshots (file_id, snapshot_date, stock_value)
				VALUES ($1,$2,$3)
			`, fileID, snap.Date, snap.StockValue)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListInventorySnapshots(ctx context.Context) ([]domain.InventorySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot_date, stock_value FROM inventory_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.InventorySnapshot, 0, 32)
	for rows.Next() {
		var snap domain.InventorySnapshot
		if err := rows.Scan(&snap.Date, &snap.StockValue); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (s *Store) AppendCapitalSnapshots(ctx context.Context, fileID string, snapshots []domain.CapitalSnapshot) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, snap := range snapshots {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO capital_snapshots (file_id, snapshot_date, capital_value)
				VALUES ($1,$2,$3)
			`, fileID, snap.Date, snap.CapitalValue)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListCapitalSnapshots(ctx context.Context) ([]domain.CapitalSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot_date, capital_value FROM capital_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.CapitalSnapshot, 0, 32)
	for rows.Next() {
		var snap domain.CapitalSnapshot
		if err := rows.Scan(&snap.Date, &snap.CapitalValue); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (s *Store) UpsertPriceList(ctx context.Context, items []domain.PriceListItem) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO price_list (item_name, theoretical_price)
				VALUES ($1,$2)
				ON CONFLICT (item_name) DO UPDATE SET theoretical_price = EXCLUDED.theoretical_price
			`, item.ItemName, item.TheoreticalPrice)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetPriceList(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_name, theoretical_price FROM price_list`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make(map[string]decimal.Decimal, 64)
	for rows.Next() {
		var (
			name  string
			price decimal.Decimal
		)
		if err := rows.Scan(&name, &price); err != nil {
			return nil, err
		}
		prices[name] = price
	}
	return prices, rows.Err()
}

func (s *Store) UpsertReorderLevels(ctx context.Context, levels []domain.ReorderLevel) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, level := range levels {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reorder_levels (item_name, reorder_level)
				VALUES ($1,$2)
				ON CONFLICT (item_name) DO UPDATE SET reorder_level = EXCLUDED.reorder_level
			`, level.ItemName, level.ReorderLevel)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetReorderLevels(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_name, reorder_level FROM reorder_levels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make(map[string]int, 64)
	for rows.Next() {
		var (
			name  string
			level int
		)
		if err := rows.Scan(&name, &level); err != nil {
			return nil, err
		}
		levels[name] = level
	}
	return levels, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidFile
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password, role, active, created_at FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
