package migration

import (
	"fmt"

	"github.com/uptrace/bun/dialect"
)

// ordersTableDDL returns the CREATE TABLE statement for the orders table. Ids come from
// sequences that never hand out a value twice, including after deletes.
func ordersTableDDL(name dialect.Name) (string, error) {
	switch name {
	case dialect.SQLite:
		return `CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_number TEXT NOT NULL UNIQUE,
	customer_name TEXT NOT NULL,
	customer_avatar TEXT,
	order_date TEXT NOT NULL,
	status TEXT NOT NULL,
	total_amount REAL NOT NULL,
	payment_status TEXT NOT NULL
)`, nil
	case dialect.PG:
		return `CREATE TABLE IF NOT EXISTS orders (
	id BIGSERIAL PRIMARY KEY,
	order_number TEXT NOT NULL UNIQUE,
	customer_name TEXT NOT NULL,
	customer_avatar TEXT,
	order_date TEXT NOT NULL,
	status TEXT NOT NULL,
	total_amount DOUBLE PRECISION NOT NULL,
	payment_status TEXT NOT NULL
)`, nil
	case dialect.MySQL:
		return `CREATE TABLE IF NOT EXISTS orders (
	id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	order_number VARCHAR(255) NOT NULL UNIQUE,
	customer_name VARCHAR(255) NOT NULL,
	customer_avatar TEXT,
	order_date VARCHAR(64) NOT NULL,
	status VARCHAR(64) NOT NULL,
	total_amount DOUBLE NOT NULL,
	payment_status VARCHAR(64) NOT NULL
)`, nil
	default:
		return "", fmt.Errorf("unsupported dialect for orders table: %s", name)
	}
}
