package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Ids are application generated uuids stored as text. Money columns hold
// minor units.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS franchises (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ingredients (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		unit_price  BIGINT NOT NULL CHECK (unit_price >= 0),
		supplier_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS dishes (
		id           TEXT PRIMARY KEY,
		franchise_id TEXT NOT NULL REFERENCES franchises(id),
		name         TEXT NOT NULL,
		base_price   BIGINT NOT NULL CHECK (base_price >= 0),
		availability BOOLEAN NOT NULL DEFAULT true,
		menu_id      TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS dish_ingredients (
		dish_id           TEXT NOT NULL REFERENCES dishes(id) ON DELETE CASCADE,
		ingredient_id     TEXT NOT NULL REFERENCES ingredients(id),
		quantity_required BIGINT NOT NULL CHECK (quantity_required >= 1),
		PRIMARY KEY (dish_id, ingredient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock (
		franchise_id  TEXT NOT NULL REFERENCES franchises(id),
		ingredient_id TEXT NOT NULL REFERENCES ingredients(id),
		quantity      BIGINT NOT NULL CHECK (quantity >= 0),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (franchise_id, ingredient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		shop_id    TEXT NOT NULL REFERENCES franchises(id),
		status     TEXT NOT NULL,
		total      BIGINT NOT NULL CHECK (total >= 0),
		version    INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position   INT NOT NULL,
		item_id    TEXT NOT NULL,
		quantity   BIGINT NOT NULL CHECK (quantity >= 1),
		unit_price BIGINT NOT NULL CHECK (unit_price >= 0),
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS order_item_options (
		order_id         TEXT NOT NULL,
		position         INT NOT NULL,
		option_position  INT NOT NULL,
		option_id        TEXT NOT NULL DEFAULT '',
		name             TEXT NOT NULL DEFAULT '',
		additional_price BIGINT NOT NULL CHECK (additional_price >= 0),
		PRIMARY KEY (order_id, position, option_position),
		FOREIGN KEY (order_id, position) REFERENCES order_items(order_id, position) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS order_reservations (
		order_id      TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		ingredient_id TEXT NOT NULL,
		quantity      BIGINT NOT NULL CHECK (quantity > 0),
		PRIMARY KEY (order_id, ingredient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS commands (
		id             TEXT PRIMARY KEY,
		franchise_id   TEXT NOT NULL REFERENCES franchises(id),
		user_id        TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		estimated_cost BIGINT NOT NULL DEFAULT 0,
		version        INT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS command_items (
		command_id    TEXT NOT NULL REFERENCES commands(id) ON DELETE CASCADE,
		position      INT NOT NULL,
		ingredient_id TEXT NOT NULL REFERENCES ingredients(id),
		quantity      BIGINT NOT NULL CHECK (quantity > 0),
		PRIMARY KEY (command_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS status_log (
		id          BIGSERIAL PRIMARY KEY,
		entity      TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status   TEXT NOT NULL,
		changed_by  TEXT NOT NULL DEFAULT '',
		changed_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS status_log_entity_idx ON status_log (entity, entity_id, id)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return nil
}
