package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/config"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
	pg "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Parse(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	plans := pg.NewPlanRepo(pool)
	catalog := pg.NewCatalogRepo(pool, plans)

	existing, err := plans.ListAll(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(existing))
		for _, p := range existing {
			fmt.Printf("  - %s (level=%d, monthly=%d COP, annual=%d COP)\n", p.ID, p.Level, p.MonthlyPrice, p.AnnualPrice)
		}
		return
	}

	seed := []*model.Plan{
		{ID: "basica", Name: "Plan Básica", Level: 1, MonthlyPrice: 50_000, AnnualPrice: 500_000, Active: true,
			Permissions: []model.Permission{model.PermissionCourses, model.PermissionCommunity}},
		{ID: "intermedia", Name: "Plan Intermedia", Level: 2, MonthlyPrice: 80_000, AnnualPrice: 800_000, Active: true,
			Permissions: []model.Permission{model.PermissionCourses, model.PermissionTutorials, model.PermissionCommunity, model.PermissionSimulator}},
		{ID: "avanzada", Name: "Plan Avanzada", Level: 3, MonthlyPrice: 120_000, AnnualPrice: 1_200_000, Active: true,
			Permissions: []model.Permission{model.PermissionCourses, model.PermissionTutorials, model.PermissionCommunity,
				model.PermissionSimulator, model.PermissionLiveClass, model.PermissionDownloads, model.PermissionCertificates}},
	}
	for _, p := range seed {
		if err := plans.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %q: %v", p.ID, err)
		}
		fmt.Printf("seeded plan: %s (monthly=%d COP)\n", p.ID, p.MonthlyPrice)
	}

	content := []struct {
		kind  model.ProductKind
		id    string
		title string
		price int64
	}{
		{model.ProductCourse, "acordeon-101", "Acordeón desde cero", 89_900},
		{model.ProductCourse, "paseo-vallenato", "El paseo vallenato", 129_900},
		{model.ProductTutorial, "la-gota-fria", "Tutorial: La gota fría", 19_900},
	}
	for _, c := range content {
		if err := catalog.SaveContent(ctx, c.kind, c.id, c.title, c.price); err != nil {
			log.Fatalf("save %s %q: %v", c.kind, c.id, err)
		}
		fmt.Printf("seeded %s: %s (%d COP)\n", c.kind, c.id, c.price)
	}

	fmt.Println("Seeding complete.")
}
