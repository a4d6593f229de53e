// Command seed_templates installs the default template catalogue for one
// tenant and can create the tenant's first admin operator.
//
//	go run ./cmd/scripts/seed_templates -tenant school-a -admin-email head@school.edu -admin-password secret1
package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/config"
	"github.com/ArowuTest/edunotify-backend/internal/logging"
	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	mongorepo "github.com/ArowuTest/edunotify-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/ArowuTest/edunotify-backend/pkg/mongodb"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const seedOperator = "seed-script"

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info(".env file not found, using environment variables")
	}

	tenant := flag.String("tenant", "", "tenant (school) id to seed")
	mongoURI := flag.String("mongo-uri", config.GetEnv("MONGODB_URI", "mongodb://localhost:27017"), "MongoDB connection string")
	database := flag.String("database", config.GetEnv("MONGODB_DATABASE", "edunotify"), "MongoDB database name")
	adminName := flag.String("admin-name", "Administrator", "name of the admin operator to create")
	adminEmail := flag.String("admin-email", "", "create an admin operator with this email")
	adminPassword := flag.String("admin-password", "", "password of the admin operator")
	flag.Parse()

	log := logging.New(config.GetEnv("LOGLEVEL", "info"), config.GetEnv("LOGFORMAT", "text"))
	if *tenant == "" {
		flag.Usage()
		log.Fatal("-tenant is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.GetEnvAsInt("SEED_TIMEOUT_SECONDS", 60))*time.Second)
	defer cancel()

	client, err := mongodb.NewClient(ctx, *mongoURI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(*database)
	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		log.WithError(err).Fatal("Failed to create indexes")
	}

	templates := services.NewTemplateService(mongorepo.NewTemplateRepository(db), nil, log)
	seeded, err := templates.SeedDefaults(ctx, models.Identity{OperatorID: seedOperator, TenantID: *tenant, Role: models.RoleAdmin})
	switch {
	case errors.Is(err, services.ErrSeedConflict):
		log.WithField("tenant_id", *tenant).Warn("Tenant already has templates, catalogue left unchanged")
	case err != nil:
		log.WithError(err).Fatal("Failed to seed templates")
	default:
		for _, t := range seeded {
			log.WithFields(logrus.Fields{"tenant_id": *tenant, "template_code": t.Code}).Info("Seeded template")
		}
	}

	if *adminEmail == "" {
		return
	}
	auth := services.NewAuthService(mongorepo.NewOperatorRepository(db), nil)
	op, err := auth.CreateOperator(ctx, *tenant, models.RegisterRequest{
		Name:     *adminName,
		Email:    *adminEmail,
		Password: *adminPassword,
		Role:     models.RoleAdmin,
	})
	switch {
	case errors.Is(err, repositories.ErrDuplicate):
		log.WithField("email", *adminEmail).Warn("Operator already exists")
	case err != nil:
		log.WithError(err).Fatal("Failed to create admin operator")
	default:
		log.WithFields(logrus.Fields{"tenant_id": *tenant, "operator_id": op.ID.Hex()}).Info("Admin operator created")
	}
}
