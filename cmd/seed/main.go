// cmd/seed loads demo data and staff accounts into the pricing database.
//
//	seed fixtures
//	seed user --username buyer --password secret --role purchaser
//	seed rates --base USD THB=35.50 EUR=0.92
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"carmen/internal/config"
	"carmen/internal/infra"
	"carmen/internal/model"
	"carmen/internal/repository"
	"carmen/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	app := &cli.App{
		Name:  "seed",
		Usage: "load fixtures and accounts into the price assignment database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database-url", EnvVars: []string{"DATABASE_URL"}, Usage: "overrides DATABASE_URL from config"},
		},
		Commands: []*cli.Command{
			{
				Name:   "fixtures",
				Usage:  "demo vendors, submissions, exchange rates and rules",
				Action: seedFixtures,
			},
			{
				Name:  "user",
				Usage: "create or reset a staff account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "role", Value: service.RolePurchaser, Usage: "purchaser | purchasing_manager | admin"},
				},
				Action: seedUser,
			},
			{
				Name:      "rates",
				Usage:     "record exchange rates given as QUOTE=RATE pairs",
				ArgsUsage: "QUOTE=RATE...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base", Value: "USD"},
				},
				Action: seedRates,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func openDB(c *cli.Context) (*gorm.DB, error) {
	dsn := c.String("database-url")
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		dsn = cfg.DatabaseURL
	}
	return infra.NewDatabase(dsn)
}

// ── fixtures ─────────────────────────────────────────────────────────────────

func seedFixtures(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	vendors := repository.NewVendorRepository(db)
	for _, v := range fixtureVendors() {
		v := v
		if err := vendors.Upsert(ctx, &v); err != nil {
			return fmt.Errorf("vendor %s: %w", v.ID, err)
		}
	}

	now := time.Now().UTC().Truncate(time.Hour)
	subs := repository.NewPriceSubmissionRepository(db)
	for _, s := range fixtureSubmissions(now) {
		s := s
		if err := subs.Create(ctx, &s); err != nil {
			return fmt.Errorf("submission %s/%s: %w", s.VendorID, s.ProductID, err)
		}
	}

	rates := repository.NewExchangeRateRepository(db)
	if err := rates.Create(ctx, fixtureRates(now.Add(-24*time.Hour))...); err != nil {
		return fmt.Errorf("exchange rates: %w", err)
	}

	rules := repository.NewBusinessRuleRepository(db)
	for _, r := range fixtureRules() {
		r := r
		err := rules.Create(ctx, &r)
		if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}

	log.Info().Msg("fixtures loaded")
	return nil
}

func fixtureVendors() []model.Vendor {
	email := func(s string) *string { return &s }
	return []model.Vendor{
		{ID: "vendor-1", Name: "Tech Supplies Co.", Categories: []string{"electronics"}, Rating: decimal.RequireFromString("4.20"), LeadTimeDays: 5, Email: email("sales@techsupplies.test"), Active: true},
		{ID: "vendor-2", Name: "Global Electronics", Categories: []string{"electronics"}, Rating: decimal.RequireFromString("4.60"), LeadTimeDays: 3, Active: true},
		{ID: "vendor-premium", Name: "Premium Tech Partners", Categories: []string{"electronics"}, Preferred: true, Rating: decimal.RequireFromString("4.90"), LeadTimeDays: 2, Active: true},
		{ID: "vendor-fresh", Name: "Bangkok Fresh Produce", Categories: []string{"produce", "dairy"}, Rating: decimal.RequireFromString("3.80"), LeadTimeDays: 1, Active: true},
	}
}

func fixtureSubmissions(now time.Time) []model.PriceSubmission {
	from := now.Add(-7 * 24 * time.Hour)
	to := now.Add(90 * 24 * time.Hour)
	stock := decimal.NewFromInt(500)
	sub := func(vendor, product, price, currency string) model.PriceSubmission {
		return model.PriceSubmission{
			ID:           uuid.New(),
			VendorID:     vendor,
			ProductID:    product,
			UnitPrice:    decimal.RequireFromString(price),
			Currency:     currency,
			MinOrderQty:  decimal.NewFromInt(1),
			AvailableQty: &stock,
			SubmittedAt:  from,
			ValidFrom:    from,
			ValidTo:      &to,
		}
	}
	return []model.PriceSubmission{
		sub("vendor-1", "PROD-001", "99.99", "USD"),
		sub("vendor-2", "PROD-001", "105.00", "USD"),
		sub("vendor-premium", "PROD-001", "3900.00", "THB"),
		sub("vendor-fresh", "PROD-100", "42.50", "THB"),
	}
}

func fixtureRates(effective time.Time) []model.ExchangeRate {
	rate := func(quote, r string) model.ExchangeRate {
		return model.ExchangeRate{ID: uuid.New(), BaseCurrency: "USD", QuoteCurrency: quote, Rate: decimal.RequireFromString(r), EffectiveAt: effective, Source: "seed"}
	}
	return []model.ExchangeRate{rate("THB", "35.50"), rate("EUR", "0.92"), rate("GBP", "0.79")}
}

func fixtureRules() []model.BusinessRule {
	return []model.BusinessRule{
		{
			ID:          uuid.New(),
			Name:        "Premium electronics",
			Description: "Route electronics to the premium partner",
			Priority:    1,
			Conditions:  []model.RuleCondition{{Field: "categoryId", Operator: "equals", Value: "electronics"}},
			Actions:     []model.RuleAction{{Type: "assignVendor", Parameters: map[string]string{"vendorId": "vendor-premium"}}},
			Active:      false,
			CreatedBy:   "seed",
		},
		{
			ID:          uuid.New(),
			Name:        "Large produce orders",
			Description: "Flag large produce orders for review",
			Priority:    5,
			Conditions: []model.RuleCondition{
				{Field: "categoryId", Operator: "equals", Value: "produce"},
				{Field: "quantity", Operator: "greaterThan", Value: 200},
			},
			Actions:   []model.RuleAction{{Type: "notify", Parameters: map[string]string{"email": "purchasing@carmen.test", "message": "large produce order"}}},
			Active:    true,
			CreatedBy: "seed",
		},
	}
}

// ── user ─────────────────────────────────────────────────────────────────────

func seedUser(c *cli.Context) error {
	role := c.String("role")
	switch role {
	case service.RolePurchaser, service.RolePurchasingManager, service.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	db, err := openDB(c)
	if err != nil {
		return err
	}
	hash, err := service.HashPassword(c.String("password"))
	if err != nil {
		return err
	}

	u := &model.User{
		Username:     c.String("username"),
		Name:         c.String("name"),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if u.Name == "" {
		u.Name = u.Username
	}
	if e := c.String("email"); e != "" {
		u.Email = &e
	}
	if err := repository.NewUserRepository(db).Upsert(c.Context, u); err != nil {
		return err
	}
	log.Info().Str("username", u.Username).Str("role", role).Msg("user created or updated")
	return nil
}

// ── rates ────────────────────────────────────────────────────────────────────

func seedRates(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one QUOTE=RATE pair is required", 2)
	}
	base := strings.ToUpper(c.String("base"))
	now := time.Now().UTC()

	rows := make([]model.ExchangeRate, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		quote, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("bad pair %q, want QUOTE=RATE", arg)
		}
		r, err := decimal.NewFromString(value)
		if err != nil || !r.IsPositive() {
			return fmt.Errorf("bad rate in %q", arg)
		}
		rows = append(rows, model.ExchangeRate{
			ID:            uuid.New(),
			BaseCurrency:  base,
			QuoteCurrency: strings.ToUpper(quote),
			Rate:          r,
			EffectiveAt:   now,
			Source:        "seed",
		})
	}

	db, err := openDB(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	if err := repository.NewExchangeRateRepository(db).Create(ctx, rows...); err != nil {
		return err
	}
	log.Info().Int("count", len(rows)).Str("base", base).Msg("exchange rates recorded")
	return nil
}
