package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
)

const logPrefix = "bootstrap:loader"

// LoadSeedFile loads seed data from file paths or environment. It tries paths
// in order: first any paths passed in, then SEED_FILE, then defaults. So an
// explicit path (e.g. from "seed my.json") is tried before the env var.
func LoadSeedFile(paths ...string) (*SeedFile, error) {
	all := make([]string, 0, len(paths)+3)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("SEED_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/seed.json", "seed.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		var seed SeedFile
		if err := json.Unmarshal(data, &seed); err != nil {
			log.Warn().Msgf("%s - Failed to parse seed file %s: %v", logPrefix, p, err)
			continue
		}

		log.Info().Msgf("%s - Loaded seed file from %s", logPrefix, p)
		return &seed, nil
	}

	log.Info().Msgf("%s - Using default seed data", logPrefix)
	return DefaultSeed(), nil
}

func price(v float64) *float64 { return &v }
func qty(v int) *int           { return &v }

// DefaultSeed returns the built-in demo catalog.
func DefaultSeed() *SeedFile {
	return &SeedFile{
		Name:        "wkc-demo",
		Version:     "1.0.0",
		Description: "Demo seller catalog",
		Products: []catalog.ProductInput{
			{
				Category:    "Electronics",
				CompanyName: "WKC Demo Co",
				Description: "Over-ear wireless headphones with noise cancelling",
				ImageURL:    "https://wkc.vercel.app/images/headphones.png",
				Name:        "Wireless Headphones",
				Price:       price(49.99),
				Quantity:    qty(15),
				SKU:         "WKC-HP-001",
				UserID:      "demo-seller",
			},
			{
				Category:    "Clothing",
				CompanyName: "WKC Demo Co",
				Description: "Organic cotton t-shirt",
				ImageURL:    "https://wkc.vercel.app/images/tshirt.png",
				Name:        "Cotton T-Shirt",
				Price:       price(19.5),
				Quantity:    qty(40),
				SKU:         "WKC-TS-002",
				UserID:      "demo-seller",
			},
		},
	}
}

// Apply creates the seed products and orders. Entries that fail validation
// are recorded in the result and skipped; a store failure aborts. Apply is
// safe to repeat: a product whose seller already has its SKU, or an order
// whose user already has the same chat message, counts as Existing.
func Apply(ctx context.Context, svc *catalog.Service, seed *SeedFile) (*ApplyResult, error) {
	res := &ApplyResult{}
	for i, p := range seed.Products {
		exists, err := productExists(ctx, svc, p)
		if err != nil {
			return res, fmt.Errorf("seed product %d: %w", i, err)
		}
		if exists {
			res.Existing++
			continue
		}
		if _, err := svc.CreateProduct(ctx, p); err != nil {
			if catalog.ErrorCode(err) != catalog.CodeInvalidArgument {
				return res, fmt.Errorf("seed product %d: %w", i, err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("product %d (%s): %s", i, p.Name, catalog.ErrorMessage(err)))
			continue
		}
		res.Products++
	}

	for i, o := range seed.Orders {
		exists, err := orderExists(ctx, svc, o)
		if err != nil {
			return res, fmt.Errorf("seed order %d: %w", i, err)
		}
		if exists {
			res.Existing++
			continue
		}
		id, err := svc.CreateOrder(ctx, catalog.NewOrder{UserID: o.UserID, ChatMessage: o.ChatMessage, OrderDetails: o.OrderDetails})
		if err != nil {
			if catalog.ErrorCode(err) != catalog.CodeInvalidArgument {
				return res, fmt.Errorf("seed order %d: %w", i, err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("order %d: %s", i, catalog.ErrorMessage(err)))
			continue
		}
		if o.Status != "" && o.Status != string(catalog.StatusPending) {
			if err := svc.UpdateOrderStatus(ctx, id, o.Status); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("order %d status: %s", i, catalog.ErrorMessage(err)))
			}
		}
		res.Orders++
	}

	log.Info().Msgf("%s - Seeded %d products and %d orders (%d already present, %d skipped)",
		logPrefix, res.Products, res.Orders, res.Existing, len(res.Errors))
	return res, nil
}

// productExists reports whether the seller already has a product with p's
// SKU. Entries without a seller or SKU are left for CreateProduct to judge.
func productExists(ctx context.Context, svc *catalog.Service, p catalog.ProductInput) (bool, error) {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.SKU) == "" {
		return false, nil
	}
	matches, err := svc.SearchProducts(ctx, p.UserID, p.SKU, "")
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if strings.EqualFold(m.SKU, p.SKU) {
			return true, nil
		}
	}
	return false, nil
}

func orderExists(ctx context.Context, svc *catalog.Service, o SeedOrder) (bool, error) {
	if strings.TrimSpace(o.UserID) == "" {
		return false, nil
	}
	orders, err := svc.GetUserOrders(ctx, o.UserID)
	if err != nil {
		return false, err
	}
	for _, existing := range orders {
		if existing.ChatMessage == o.ChatMessage {
			return true, nil
		}
	}
	return false, nil
}
