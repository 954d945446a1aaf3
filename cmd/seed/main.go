// seed inserts development sample data for local testing: go run ./cmd/seed.
// Idempotent: skips inserts if the dev staff member (staff-alice) already exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"shiftwise/backend/internal/config"
	"shiftwise/backend/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("seed: open database: %v", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var exists bool
	if err := sqlDB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM staff WHERE id = 'staff-alice')`).Scan(&exists); err != nil {
		log.Fatalf("seed: check existing data: %v", err)
	}
	if exists {
		fmt.Println("seed: sample data already present, nothing to do")
		return
	}

	if err := run(ctx, sqlDB); err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Println("seed: done")
}

func run(ctx context.Context, d *sql.DB) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	staff := []struct{ id, name, role, status string }{
		{"staff-alice", "Alice Moreau", "server", "active"},
		{"staff-bob", "Bob Tanaka", "server", "active"},
		{"staff-carol", "Carol Diaz", "manager", "active"},
		{"staff-dan", "Dan Osei", "server", "disabled"},
	}
	for _, s := range staff {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO staff (id, name, role, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
			s.id, s.name, s.role, s.status, now); err != nil {
			return fmt.Errorf("insert staff %s: %w", s.id, err)
		}
	}

	tables := []struct{ id, label, occupiedBy string }{
		{"table-1", "T1", "staff-alice"},
		{"table-2", "T2", "staff-alice"},
		{"table-3", "T3", ""},
		{"table-4", "T4", "staff-bob"},
	}
	for _, t := range tables {
		occupied := sql.NullString{String: t.occupiedBy, Valid: t.occupiedBy != ""}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO restaurant_tables (id, label, occupied_by) VALUES ($1, $2, $3)`,
			t.id, t.label, occupied); err != nil {
			return fmt.Errorf("insert table %s: %w", t.id, err)
		}
	}

	orders := []struct {
		staffID, tableID, status string
		totalCents               int64
	}{
		{"staff-alice", "table-1", "pending", 4250},
		{"staff-alice", "table-2", "pending", 8900},
		{"staff-alice", "table-1", "closed", 3100},
		{"staff-bob", "table-4", "pending", 2600},
	}
	for _, o := range orders {
		var closedAt sql.NullTime
		if o.status == "closed" {
			closedAt = sql.NullTime{Time: now, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, staff_id, table_id, status, total_cents, created_at, closed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), o.staffID, o.tableID, o.status, o.totalCents, now, closedAt); err != nil {
			return fmt.Errorf("insert order for %s: %w", o.staffID, err)
		}
	}

	cash := []struct {
		staffID, kind string
		amountCents   int64
	}{
		{"staff-alice", "opening_float", 20000},
		{"staff-alice", "sale", 3100},
		{"staff-bob", "opening_float", 20000},
	}
	for _, c := range cash {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cash_movements (id, staff_id, amount_cents, kind, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), c.staffID, c.amountCents, c.kind, now); err != nil {
			return fmt.Errorf("insert cash movement for %s: %w", c.staffID, err)
		}
	}

	return tx.Commit()
}
