// Command createsuperuser creates an active account holding every privilege flag.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/internal/password"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/internal/serializer"
	"github.com/suteetoe/geoprofile/pkg/config"
	"github.com/suteetoe/geoprofile/pkg/database"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	email := flag.String("email", "", "account email (required)")
	pw := flag.String("password", os.Getenv("SUPERUSER_PASSWORD"), "account password, defaults to $SUPERUSER_PASSWORD")
	country := flag.String("country", "Nepal", "country of residence")
	phone := flag.Uint("phone", 0, "phone number (0-15)")
	dob := flag.String("dob", "1970-01-01", "date of birth, YYYY-MM-DD")
	flag.Parse()

	cfg, err := config.Load("geoprofile-createsuperuser")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	u, err := buildSuperuser(cfg, *email, *pw, *country, *phone, *dob)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	db, err := database.InitDB(&cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := repository.NewUserRepository(db).Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			log.Fatal("Email already registered", zap.String("email", u.Email))
		}
		log.Fatal("Failed to create superuser", zap.Error(err))
	}
	log.Info("Superuser created", zap.Uint("id", u.ID), zap.String("email", u.Email))
}

func buildSuperuser(cfg *config.Config, email, pw, country string, phone uint, dob string) (*model.User, error) {
	if email == "" {
		return nil, errors.New("-email is required")
	}
	if !model.IsCountry(country) {
		return nil, fmt.Errorf("%q is not a valid country", country)
	}
	if phone > model.PhoneNumberMax {
		return nil, fmt.Errorf("phone number must be at most %d", model.PhoneNumberMax)
	}
	born, err := time.Parse(serializer.DateLayout, dob)
	if err != nil {
		return nil, fmt.Errorf("invalid -dob: %w", err)
	}

	email = serializer.NormalizeEmail(email)
	validator := password.NewValidator(cfg.Password.MinLength, cfg.Password.MinEntropy)
	if err := validator.Validate(pw, email); err != nil {
		return nil, err
	}
	hashed, err := password.Hash(pw)
	if err != nil {
		return nil, err
	}

	return &model.User{
		Email:       email,
		Password:    hashed,
		Country:     country,
		PhoneNumber: phone,
		DateOfBirth: born,
		IsActive:    true,
		IsStaff:     true,
		IsAdmin:     true,
		IsSuperuser: true,
	}, nil
}
