// Seeds a development database with an admin account and a handful of
// catalog products. Safe to re-run: existing rows are left alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"thepresent-be/internal/config"
	"thepresent-be/internal/db"
	"thepresent-be/internal/product"
	"thepresent-be/internal/user"
)

func main() {
	cfg := config.LoadConfig()
	database := db.InitDB(cfg)
	defer database.Close()

	ctx := context.Background()

	if err := seedAdmin(ctx, user.NewRepository(database)); err != nil {
		log.Fatalf("seeding admin failed: %v", err)
	}
	if err := seedProducts(ctx, product.NewRepository(database)); err != nil {
		log.Fatalf("seeding products failed: %v", err)
	}
	fmt.Println("seed complete.")
}

func seedAdmin(ctx context.Context, repo user.Repository) error {
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	hash, err := user.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = repo.Create(ctx, user.User{
		Name:     "Admin",
		Email:    "admin@thepresent.co",
		Password: hash,
		Role:     user.RoleAdmin,
	})
	if errors.Is(err, user.ErrEmailExists) {
		fmt.Println("admin account already present, skipping")
		return nil
	}
	if err == nil {
		fmt.Println("created admin account admin@thepresent.co")
	}
	return err
}

func seedProducts(ctx context.Context, repo product.Repository) error {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Printf("catalog already has %d products, skipping\n", len(existing))
		return nil
	}

	samples := []product.Product{
		{
			Name:        "Handmade Ceramic Mug",
			Description: "Stoneware mug, glazed in ocean blue. Holds 350ml.",
			Price:       19.99,
			Category:    "kitchen",
			Images: []product.Image{
				{URL: "https://res.cloudinary.com/demo/image/upload/the_present/ceramic_mug.jpg", PublicID: "the_present/ceramic_mug"},
			},
		},
		{
			Name:        "Linen Throw Blanket",
			Description: "Soft washed linen, 130x170cm, natural dye.",
			Price:       54.50,
			Category:    "home",
			Images: []product.Image{
				{URL: "https://res.cloudinary.com/demo/image/upload/the_present/linen_blanket.jpg", PublicID: "the_present/linen_blanket"},
			},
		},
		{
			Name:        "Scented Soy Candle",
			Description: "Cedar and bergamot, 40 hour burn time.",
			Price:       12.00,
			Category:    "home",
		},
		{
			Name:        "Leather Journal",
			Description: "A5 full-grain leather journal with 200 blank pages.",
			Price:       32.90,
			Category:    "stationery",
			Images: []product.Image{
				{URL: "https://res.cloudinary.com/demo/image/upload/the_present/leather_journal.jpg", PublicID: "the_present/leather_journal"},
			},
		},
	}

	for _, p := range samples {
		created, err := repo.Create(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("created product %q (%s)\n", created.Name, created.ID)
	}
	return nil
}
