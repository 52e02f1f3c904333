package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commerceops/opsdash/internal/app"
	"github.com/commerceops/opsdash/internal/platform/db"
)

type seedProduct struct {
	sku        string
	title      string
	priceCents int64
	leadTime   int
	batchSize  int
	moq        int
	stock      int
	dailyUnits int
	costCents  int64
}

var products = []seedProduct{
	{sku: "MUG-STONE-01", title: "Stoneware Mug", priceCents: 1800, leadTime: 21, batchSize: 24, moq: 48, stock: 140, dailyUnits: 6, costCents: 520},
	{sku: "LAMP-ARC-02", title: "Arc Floor Lamp", priceCents: 14900, leadTime: 35, batchSize: 4, moq: 8, stock: 9, dailyUnits: 1, costCents: 6100},
	{sku: "TOTE-CNV-03", title: "Canvas Tote", priceCents: 2400, leadTime: 14, batchSize: 50, moq: 100, stock: 0, dailyUnits: 4, costCents: 610},
	{sku: "CNDL-SOY-04", title: "Soy Candle", priceCents: 2200, leadTime: 10, batchSize: 12, moq: 24, stock: 410, dailyUnits: 3, costCents: 480},
	{sku: "RUG-JUTE-05", title: "Jute Rug", priceCents: 8900, leadTime: 45, batchSize: 2, moq: 4, stock: 30, dailyUnits: 0, costCents: 3300},
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	steps := []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"catalog", seedCatalog},
		{"suppliers", seedSuppliers},
		{"orders", seedOrders},
	}
	for _, step := range steps {
		logger.Info("seeding", slog.String("step", step.name))
		if err := step.fn(ctx, pool); err != nil {
			logger.Error("seed failed", slog.String("step", step.name), slog.Any("error", err))
			os.Exit(1)
		}
	}
	logger.Info("seed complete")
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var channelID int64
		err := tx.QueryRow(ctx, `SELECT id FROM channels WHERE name = 'Storefront' LIMIT 1`).Scan(&channelID)
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.QueryRow(ctx, `INSERT INTO channels (name, kind) VALUES ('Storefront', 'shopify') RETURNING id`).Scan(&channelID)
		}
		if err != nil {
			return err
		}

		for _, p := range products {
			var productID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO products (sku, title, channel_id, price_cents, lead_time_days, batch_size, moq)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (sku) DO UPDATE SET title = EXCLUDED.title
				RETURNING id`, p.sku, p.title, channelID, p.priceCents, p.leadTime, p.batchSize, p.moq).Scan(&productID)
			if err != nil {
				return fmt.Errorf("product %s: %w", p.sku, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO inventory (product_id, quantity, available)
				VALUES ($1, $2, $2)
				ON CONFLICT (product_id) DO NOTHING`, productID, p.stock)
			if err != nil {
				return fmt.Errorf("inventory %s: %w", p.sku, err)
			}
		}
		return nil
	})
}

func seedSuppliers(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		suppliers := []struct {
			name     string
			email    string
			currency string
			leadTime int
			markup   int64
		}{
			{"Harbor Ceramics", "orders@harbor.example", "USD", 0, 100},
			{"Rhein Handels GmbH", "einkauf@rhein.example", "EUR", 28, 92},
		}
		for i, s := range suppliers {
			var supplierID int64
			err := tx.QueryRow(ctx, `SELECT id FROM suppliers WHERE name = $1`, s.name).Scan(&supplierID)
			if errors.Is(err, pgx.ErrNoRows) {
				err = tx.QueryRow(ctx, `
					INSERT INTO suppliers (name, email, currency) VALUES ($1, $2, $3)
					RETURNING id`, s.name, s.email, s.currency).Scan(&supplierID)
			}
			if err != nil {
				return fmt.Errorf("supplier %s: %w", s.name, err)
			}
			for _, p := range products {
				_, err := tx.Exec(ctx, `
					INSERT INTO product_suppliers (product_id, supplier_id, supplier_sku, unit_cost_cents, lead_time_days, moq, preferred)
					SELECT id, $2, $3, $4, $5, moq, $6 FROM products WHERE sku = $1
					ON CONFLICT (product_id, supplier_id) DO NOTHING`,
					p.sku, supplierID, fmt.Sprintf("S%d-%s", i+1, p.sku), p.costCents*s.markup/100, s.leadTime, i == 0)
				if err != nil {
					return fmt.Errorf("product supplier %s: %w", p.sku, err)
				}
			}
		}
		return nil
	})
}

// seedOrders writes 60 days of history once. Sales double in the last 30
// days for the first product so the performance matrix has a star.
func seedOrders(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var existing int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		today := time.Now().UTC().Truncate(24 * time.Hour)
		for day := 60; day >= 1; day-- {
			orderedAt := today.AddDate(0, 0, -day).Add(10 * time.Hour)
			var orderID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO orders (channel_id, external_id, customer_email, status, shipping_cost_cents, ordered_at)
				SELECT id, $1, $2, 'fulfilled', 899, $3 FROM channels WHERE name = 'Storefront'
				RETURNING id`, fmt.Sprintf("SEED-%03d", day), fmt.Sprintf("customer%02d@shop.example", day%17), orderedAt).Scan(&orderID)
			if err != nil {
				return fmt.Errorf("order day %d: %w", day, err)
			}
			for i, p := range products {
				qty := p.dailyUnits
				if i == 0 && day <= 30 {
					qty *= 2
				}
				if qty == 0 {
					continue
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO order_items (order_id, product_id, sku, title, quantity, unit_price_cents)
					SELECT $1, id, sku, title, $3, price_cents FROM products WHERE sku = $2`,
					orderID, p.sku, qty)
				if err != nil {
					return fmt.Errorf("order item %s: %w", p.sku, err)
				}
			}
		}
		return nil
	})
}
