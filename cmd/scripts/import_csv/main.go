// Command import_csv loads a tenant's students and attendance from CSV
// exports into MongoDB.
//
//	go run ./cmd/scripts/import_csv -tenant school-a -students students.csv
//	go run ./cmd/scripts/import_csv -tenant school-a -attendance absent.csv -date 2024-06-03
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/config"
	"github.com/ArowuTest/edunotify-backend/internal/importer"
	"github.com/ArowuTest/edunotify-backend/internal/logging"
	mongorepo "github.com/ArowuTest/edunotify-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/edunotify-backend/pkg/mongodb"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info(".env file not found, using environment variables")
	}

	tenant := flag.String("tenant", "", "tenant (school) id to import into")
	studentsPath := flag.String("students", "", "students CSV file")
	attendancePath := flag.String("attendance", "", "attendance CSV file")
	date := flag.String("date", "", "attendance date for rows without a Date column")
	mongoURI := flag.String("mongo-uri", config.GetEnv("MONGODB_URI", "mongodb://localhost:27017"), "MongoDB connection string")
	database := flag.String("database", config.GetEnv("MONGODB_DATABASE", "edunotify"), "MongoDB database name")
	flag.Parse()

	log := logging.New(config.GetEnv("LOGLEVEL", "info"), config.GetEnv("LOGFORMAT", "text"))
	if *tenant == "" || (*studentsPath == "" && *attendancePath == "") {
		flag.Usage()
		log.Fatal("-tenant and at least one of -students or -attendance are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
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
	imp := importer.NewCSVImporter(mongorepo.NewStudentDirectory(db), log)

	// Students first so attendance rows can find them
	if *studentsPath != "" {
		result, err := importFile(*studentsPath, func(f *os.File) (*importer.Result, error) {
			return imp.ImportStudents(ctx, *tenant, f)
		})
		report(log, "students", result, err)
	}
	if *attendancePath != "" {
		result, err := importFile(*attendancePath, func(f *os.File) (*importer.Result, error) {
			return imp.ImportAttendance(ctx, *tenant, *date, f)
		})
		report(log, "attendance", result, err)
	}
}

func importFile(path string, load func(*os.File) (*importer.Result, error)) (*importer.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return load(f)
}

func report(log *logrus.Logger, kind string, result *importer.Result, err error) {
	if result != nil {
		for _, msg := range result.Errors {
			log.WithField("file", kind).Warn(msg)
		}
		log.WithFields(logrus.Fields{
			"file":     kind,
			"rows":     result.TotalRows,
			"imported": result.Imported,
			"rejected": len(result.Errors),
		}).Info("Import finished")
	}
	if err != nil {
		log.WithError(err).WithField("file", kind).Fatal("Import failed")
	}
}
