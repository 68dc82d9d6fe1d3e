package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Seed credentials for local development.
const (
	SeedEmail    = "demo@storefront.local"
	SeedPassword = "demo-password"
)

// seedProducts is stored as JSONB in the sites table.
const seedProducts = `[{"name":"Sourdough Loaf","price":"$8"},{"name":"Cinnamon Roll","price":"$4"}]`

const seedHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Demo Bakery</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;color:#2d2a26;background:#fbf7f2}
header{padding:3rem 1.5rem;text-align:center;background:#e9d8c4}
main{max-width:48rem;margin:0 auto;padding:1.5rem}
ul{list-style:none;padding:0}li{display:flex;justify-content:space-between;padding:.5rem 0;border-bottom:1px solid #e4dccf}
</style>
</head>
<body>
<header><h1>Demo Bakery</h1><p>Fresh bread every morning</p></header>
<main>
<section><h2>About</h2><p>A neighbourhood bakery baking small batches of bread and pastries since 2015.</p></section>
<section><h2>Products</h2><ul><li><span>Sourdough Loaf</span><span>$8</span></li><li><span>Cinnamon Roll</span><span>$4</span></li></ul></section>
<section><h2>Contact</h2><p>123 Main St, Anytown, USA | contact@example.com | 555-1234</p></section>
</main>
</body>
</html>`

// Seed populates the database with initial development data.
// It creates a demo user owning one public sample site if no users exist.
func Seed(db *sql.DB) error {
	// Check if any users exist already.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRow(`
		INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING id
	`, SeedEmail, string(hash), "Demo Owner").Scan(&userID)
	if err != nil {
		return fmt.Errorf("seed insert user: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sites (owner_id, store_name, tagline, about, products,
			contact_info, store_hours, html_content, is_public)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, TRUE)
	`, userID, "Demo Bakery", "Fresh bread every morning",
		"A neighbourhood bakery baking small batches of bread and pastries since 2015.",
		seedProducts, "123 Main St, Anytown, USA | contact@example.com | 555-1234",
		"Mon-Fri: 9am-5pm, Sat: 10am-2pm", seedHTML)
	if err != nil {
		return fmt.Errorf("seed insert site: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with demo user", "email", SeedEmail, "password", SeedPassword)
	return nil
}
