// seed populates an empty database with a small demo warehouse: one site,
// two rack groups, a few levels and slots, and starting stock. Run it after
// cmd/migrate against a fresh database.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"

	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/db"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	locations := core.NewLocationService(pool)
	stock := core.NewStockService(pool)

	warehouse, err := locations.CreateWarehouse(ctx, "Main Warehouse", "MAIN", "12 Dock Road", "Primary site")
	if err != nil {
		log.Fatalf("Failed to create warehouse: %v", err)
	}

	slots := map[string]uuid.UUID{}
	for _, groupCode := range []string{"A", "B"} {
		group, err := locations.CreateRackGroup(ctx, warehouse.ID, "Rack Group "+groupCode, groupCode, "")
		if err != nil {
			log.Fatalf("Failed to create rack group %s: %v", groupCode, err)
		}
		for level := 1; level <= 2; level++ {
			lvl, err := locations.CreateRackLevel(ctx, group.ID, level, "")
			if err != nil {
				log.Fatalf("Failed to create rack level: %v", err)
			}
			for slot := 1; slot <= 3; slot++ {
				s, err := locations.CreateRackSlot(ctx, lvl.ID, slot, "")
				if err != nil {
					log.Fatalf("Failed to create rack slot: %v", err)
				}
				key := fmt.Sprintf("%s/%s/L%d/S%d", warehouse.Code, groupCode, level, slot)
				slots[key] = s.ID
			}
		}
	}

	seedStock := []struct {
		product, variant, variantName, slot string
		qty                                 int64
	}{
		{"PRD-100", "", "", "MAIN/A/L1/S1", 120},
		{"PRD-100", "", "", "MAIN/A/L2/S1", 40},
		{"PRD-200", "V-RED", "Red", "MAIN/A/L1/S2", 75},
		{"PRD-200", "V-BLUE", "Blue", "MAIN/B/L1/S1", 30},
		{"PRD-300", "", "", "MAIN/B/L2/S3", 8},
	}
	for _, s := range seedStock {
		_, err := stock.StockIn(ctx, core.StockInInput{
			ProductID:   s.product,
			VariantID:   s.variant,
			VariantName: s.variantName,
			LocationID:  slots[s.slot],
			Quantity:    decimal.NewFromInt(s.qty),
			Reference:   "SEED",
		})
		if err != nil {
			log.Fatalf("Failed to seed stock for %s: %v", s.product, err)
		}
	}

	log.Println("Seed complete.")
}
