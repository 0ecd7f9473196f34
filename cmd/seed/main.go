package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shinyyama/escrow-backend/internal/config"
	"github.com/shinyyama/escrow-backend/internal/db"
	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

type seedProduct struct {
	SellerUID string
	Title     string
	Price     decimal.Decimal
	Stock     int64
	Slug      string
}

func main() {
	if err := run(); err != nil {
		logs.Errorf("seed failed: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store := repository.NewStore(gdb)

	canSeed, err := shouldSeed(ctx, store)
	if err != nil {
		return err
	}
	if !canSeed {
		logs.Info("products already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	sellers := sellerUIDs()
	products := buildSeedProducts(sellers)
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		for _, uid := range sellers {
			if _, err := tx.SellerAccounts.Get(ctx, uid); err == nil {
				continue
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("load seller account %s: %w", uid, err)
			}
			if err := tx.SellerAccounts.Upsert(ctx, &model.SellerAccount{
				SellerUID:        uid,
				OnboardingStatus: model.OnboardingNotStarted,
			}); err != nil {
				return fmt.Errorf("upsert seller account %s: %w", uid, err)
			}
		}
		for idx, p := range products {
			imageURL := picsumURL(p.Slug, idx+1)
			if err := tx.Products.Create(ctx, &model.Product{
				SellerUID: p.SellerUID,
				Title:     p.Title,
				ImageURL:  &imageURL,
				Price:     p.Price,
				StockQty:  p.Stock,
			}); err != nil {
				return fmt.Errorf("insert product %q: %w", p.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logs.Infof("seeded %d products for %d sellers", len(products), len(sellers))
	return nil
}

// sellerUIDs reads SEED_SELLERS (comma separated); it defaults to two demo sellers.
func sellerUIDs() []string {
	var out []string
	for _, s := range strings.Split(os.Getenv("SEED_SELLERS"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = []string{"demo-seller-1", "demo-seller-2"}
	}
	return out
}

func buildSeedProducts(sellers []string) []seedProduct {
	type cat struct {
		Slug   string
		Titles []string
		Price  int64
	}
	categories := []cat{
		{Slug: "fashion", Price: 42, Titles: []string{"Relaxed fit hoodie", "Organic cotton tee", "Classic denim jeans"}},
		{Slug: "home-interior", Price: 78, Titles: []string{"Solid wood side table", "Cotton rug 140x200", "Stacking shelf"}},
		{Slug: "gaming-goods", Price: 88, Titles: []string{"Wireless gamepad", "Gaming headset", "XL mouse pad"}},
		{Slug: "outdoor-travel", Price: 92, Titles: []string{"Compact camp chair", "Titanium mug set", "Backpack 28L"}},
		{Slug: "kitchen-daily", Price: 32, Titles: []string{"Ceramic frying pan", "Double wall glass mug", "Wooden cutting board"}},
		{Slug: "camera-photo", Price: 128, Titles: []string{"Prime lens for mirrorless", "Camera sling bag", "Carbon travel tripod"}},
	}

	var products []seedProduct
	n := 0
	for _, c := range categories {
		for i, t := range c.Titles {
			products = append(products, seedProduct{
				SellerUID: sellers[n%len(sellers)],
				Title:     t,
				Price:     decimal.NewFromInt(c.Price).Add(decimal.New(int64(i+1)*150, -2)),
				Stock:     int64(3 + i*2),
				Slug:      c.Slug,
			})
			n++
		}
	}
	return products
}

func shouldSeed(ctx context.Context, store *repository.Store) (bool, error) {
	var cnt int64
	if err := store.DB().WithContext(ctx).Model(&model.Product{}).Count(&cnt).Error; err != nil {
		return false, fmt.Errorf("count products: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	return strings.EqualFold(os.Getenv("FORCE_SEED"), "true"), nil
}

func picsumURL(slug string, idx int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/600", slug, idx)
}
