// Command seed applies the destination schema and inserts demo profiles so a
// local batch run has users to process.
//
// Usage:
//
//	PG_DSN=postgres://... go run ./cmd/seed -count 5
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/regenagro/enviro-data-batch/internal/adapter/postgres"
)

// demoLocations mixes raw coordinate pairs with place names so a seeded run
// exercises both resolution paths.
var demoLocations = []struct {
	location string
	areaHa   float64
}{
	{"-1.2921,36.8219", 12.5},
	{"Nakuru, Kenya", 8.0},
	{"9.0054,38.7636", 30.0},
	{"Arusha, Tanzania", 5.5},
	{"0.5143,35.2698", 18.0},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	count := flag.Int("count", len(demoLocations), "number of demo profiles to insert")
	flag.Parse()

	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		return fmt.Errorf("PG_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Println("schema applied")

	for i := 0; i < *count; i++ {
		demo := demoLocations[i%len(demoLocations)]
		id := uuid.NewString()
		_, err := pool.Exec(ctx,
			`INSERT INTO profiles (id, location, land_size_hectares) VALUES ($1, $2, $3)`,
			id, demo.location, demo.areaHa,
		)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		log.Printf("inserted profile %s at %q (%.1f ha)", id, demo.location, demo.areaHa)
	}

	log.Printf("seeded %d profiles", *count)
	return nil
}
