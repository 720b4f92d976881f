package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sales (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		name      TEXT,
		number    TEXT,
		date      TEXT,
		address   TEXT,
		quantity  INTEGER DEFAULT 1,
		total_clp INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(date);
	CREATE INDEX IF NOT EXISTS idx_sales_number ON sales(number);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	// Migration: older databases predate the quantity/total_clp and address columns.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('sales') WHERE name = 'quantity'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE sales ADD COLUMN quantity INTEGER DEFAULT 1`)
		_, _ = db.Exec(`ALTER TABLE sales ADD COLUMN total_clp INTEGER DEFAULT 0`)
	}
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('sales') WHERE name = 'address'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE sales ADD COLUMN address TEXT DEFAULT ''`)
	}

	return db, nil
}

// RegisterSale appends a sale record and returns its id. An empty date means
// today in the business timezone; the scanner passes an explicit back-dated
// value instead.
func RegisterSale(db *sql.DB, loc *time.Location, name, number string, quantity, totalCLP int, address, date string) (int64, error) {
	if date == "" {
		date = BusinessDate(time.Now(), loc)
	}
	res, err := db.Exec(
		`INSERT INTO sales (name, number, date, address, quantity, total_clp) VALUES (?, ?, ?, ?, ?, ?)`,
		name, number, date, address, quantity, totalCLP,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SalesOnDay returns the distinct customers with a record on that exact day.
func SalesOnDay(db *sql.DB, date string) ([]Customer, error) {
	rows, err := db.Query(`SELECT DISTINCT name, number FROM sales WHERE date = ?`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCustomers(rows)
}

// SalesInRange returns the distinct customers with a record between
// maxDaysAgo and minDaysAgo before today, inclusive on both ends.
func SalesInRange(db *sql.DB, loc *time.Location, minDaysAgo, maxDaysAgo int) ([]Customer, error) {
	minDate := DaysAgoDate(maxDaysAgo, loc)
	maxDate := DaysAgoDate(minDaysAgo, loc)
	rows, err := db.Query(`SELECT DISTINCT name, number FROM sales WHERE date BETWEEN ? AND ?`, minDate, maxDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func scanCustomers(rows *sql.Rows) ([]Customer, error) {
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.Name, &c.Number); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type PeriodTotals struct {
	Count int
	Total int
	Qty   int
}

type FinancialSummaryResult struct {
	Today     PeriodTotals
	Yesterday PeriodTotals
	Week      PeriodTotals
	Month     PeriodTotals
}

// FinancialSummary aggregates counts, CLP totals and quantities for four
// fixed windows: today, yesterday, trailing 7 days and month-to-date.
func FinancialSummary(db *sql.DB, loc *time.Location) (FinancialSummaryResult, error) {
	var s FinancialSummaryResult

	query := func(where string, args ...any) (PeriodTotals, error) {
		var p PeriodTotals
		err := db.QueryRow(
			`SELECT COUNT(*), COALESCE(SUM(total_clp), 0), COALESCE(SUM(quantity), 0) FROM sales WHERE `+where,
			args...,
		).Scan(&p.Count, &p.Total, &p.Qty)
		return p, err
	}

	var err error
	if s.Today, err = query(`date = ?`, DaysAgoDate(0, loc)); err != nil {
		return s, err
	}
	if s.Yesterday, err = query(`date = ?`, DaysAgoDate(1, loc)); err != nil {
		return s, err
	}
	if s.Week, err = query(`date >= ?`, DaysAgoDate(7, loc)); err != nil {
		return s, err
	}
	if s.Month, err = query(`date >= ?`, MonthStartDate(loc)); err != nil {
		return s, err
	}
	return s, nil
}

// MonthlySalesDetail returns all records from the start of the current month,
// newest first, for spreadsheet export.
func MonthlySalesDetail(db *sql.DB, loc *time.Location) ([]SaleRecord, error) {
	rows, err := db.Query(
		`SELECT id, name, number, date, COALESCE(address, ''), quantity, total_clp
		 FROM sales WHERE date >= ? ORDER BY date DESC, id DESC`,
		MonthStartDate(loc),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaleRecord
	for rows.Next() {
		var r SaleRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Number, &r.Date, &r.Address, &r.Quantity, &r.TotalCLP); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type TopCustomer struct {
	Name     string
	Number   string
	TotalQty int
}

// TopCustomers ranks customers by summed quantity within the current month.
func TopCustomers(db *sql.DB, loc *time.Location, limit int) ([]TopCustomer, error) {
	rows, err := db.Query(
		`SELECT name, number, SUM(quantity) as total_qty
		 FROM sales
		 WHERE date >= ?
		 GROUP BY name, number
		 ORDER BY total_qty DESC
		 LIMIT ?`,
		MonthStartDate(loc), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopCustomer
	for rows.Next() {
		var t TopCustomer
		if err := rows.Scan(&t.Name, &t.Number, &t.TotalQty); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaleExists reports whether a record exists for that number on that date.
// Used to short-circuit duplicate manual entry.
func SaleExists(db *sql.DB, number, date string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sales WHERE number = ? AND date = ?`, number, date).Scan(&count)
	return count > 0, err
}

// LastAddress returns the most recent non-empty address used by that
// customer across all history, or empty if none.
func LastAddress(db *sql.DB, number string) (string, error) {
	var address string
	err := db.QueryRow(
		`SELECT address FROM sales
		 WHERE number = ? AND address IS NOT NULL AND address != ''
		 ORDER BY id DESC LIMIT 1`,
		number,
	).Scan(&address)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return address, err
}

// DeleteLastSale removes the highest-id record. Returns rows removed (0 or 1).
func DeleteLastSale(db *sql.DB) (int64, error) {
	res, err := db.Exec(`DELETE FROM sales WHERE id = (SELECT MAX(id) FROM sales)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteLastSaleFor removes the highest-id record for one customer.
func DeleteLastSaleFor(db *sql.DB, number string) (int64, error) {
	res, err := db.Exec(`DELETE FROM sales WHERE id = (SELECT MAX(id) FROM sales WHERE number = ?)`, number)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
