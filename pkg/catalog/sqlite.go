// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// SQLiteStore serves both the product catalog and store payment methods from
// a SQLite database. Amounts are stored as decimal text.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) a catalog database. ":memory:" is
// accepted for tests.
func OpenSQLite(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dbPath: dbPath, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		sku TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		base_price TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_products_name ON products(display_name);

	CREATE TABLE IF NOT EXISTS payment_methods (
		store_id TEXT NOT NULL,
		id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		type TEXT NOT NULL,
		minimum_amount TEXT NOT NULL DEFAULT '0',
		enabled INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL,
		PRIMARY KEY (store_id, id)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertProduct inserts or replaces a product.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p types.ProductInfo) error {
	if p.SKU == "" {
		return fmt.Errorf("product SKU cannot be empty")
	}
	query := `
		INSERT INTO products (sku, display_name, base_price, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			display_name = excluded.display_name,
			base_price = excluded.base_price,
			active = excluded.active
	`
	if _, err := s.db.ExecContext(ctx, query, p.SKU, p.DisplayName, p.BasePrice.String(), boolInt(p.Active)); err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.SKU, err)
	}
	return nil
}

// SetPaymentMethods replaces a store's payment methods, keeping their order.
func (s *SQLiteStore) SetPaymentMethods(ctx context.Context, storeID string, methods ...types.PaymentMethodDescriptor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_methods WHERE store_id = ?`, storeID); err != nil {
		return fmt.Errorf("failed to clear payment methods: %w", err)
	}
	for i, m := range methods {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payment_methods (store_id, id, display_name, type, minimum_amount, enabled, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			storeID, m.ID, m.DisplayName, m.Type, m.MinimumAmount.String(), boolInt(m.Enabled), i)
		if err != nil {
			return fmt.Errorf("failed to insert payment method %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// Import loads every product and store from a fixture.
func (s *SQLiteStore) Import(ctx context.Context, f *Fixture) error {
	products, err := f.ProductInfos()
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := s.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	for storeID := range f.Stores {
		methods, err := f.Methods(storeID)
		if err != nil {
			return err
		}
		if err := s.SetPaymentMethods(ctx, storeID, methods...); err != nil {
			return err
		}
	}
	s.logger.Info("catalog imported",
		zap.String("path", s.dbPath),
		zap.Int("products", len(products)),
		zap.Int("stores", len(f.Stores)))
	return nil
}

// Search narrows candidates with LIKE on each word of the term and ranks
// them. When nothing matches it ranks the whole table fuzzily.
func (s *SQLiteStore) Search(ctx context.Context, term string, maxResults int) ([]types.ProductInfo, error) {
	words := strings.Fields(strings.ToLower(term))
	if len(words) == 0 {
		return nil, nil
	}

	conds := make([]string, 0, len(words))
	args := make([]interface{}, 0, len(words)+1)
	for _, w := range words {
		conds = append(conds, "LOWER(display_name) LIKE ?")
		args = append(args, "%"+strings.TrimSuffix(w, "s")+"%")
	}
	query := `SELECT sku, display_name, base_price, active FROM products WHERE (` +
		strings.Join(conds, " AND ") + `) OR LOWER(sku) = ? ORDER BY display_name`
	args = append(args, strings.Join(words, " "))

	candidates, err := s.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if ranked := rank(term, candidates, maxResults); len(ranked) > 0 {
		return ranked, nil
	}

	all, err := s.queryProducts(ctx, `SELECT sku, display_name, base_price, active FROM products ORDER BY display_name`)
	if err != nil {
		return nil, err
	}
	return rank(term, all, maxResults), nil
}

func (s *SQLiteStore) queryProducts(ctx context.Context, query string, args ...interface{}) ([]types.ProductInfo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []types.ProductInfo
	for rows.Next() {
		var (
			p      types.ProductInfo
			price  string
			active int
		)
		if err := rows.Scan(&p.SKU, &p.DisplayName, &price, &active); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.BasePrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s has invalid price %q: %w", p.SKU, price, err)
		}
		p.Active = active != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// PaymentMethods returns a store's methods in configured order.
func (s *SQLiteStore) PaymentMethods(ctx context.Context, storeID string) ([]types.PaymentMethodDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, type, minimum_amount, enabled
		FROM payment_methods WHERE store_id = ? ORDER BY position`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	var out []types.PaymentMethodDescriptor
	for rows.Next() {
		var (
			m       types.PaymentMethodDescriptor
			minimum string
			enabled int
		)
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.Type, &minimum, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		if m.MinimumAmount, err = decimal.NewFromString(minimum); err != nil {
			return nil, fmt.Errorf("payment method %s has invalid minimum %q: %w", m.ID, minimum, err)
		}
		m.Enabled = enabled != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ types.Catalog     = (*SQLiteStore)(nil)
	_ types.StoreConfig = (*SQLiteStore)(nil)
)
