package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/renewables/repd-reconcile/config"
	"github.com/renewables/repd-reconcile/internal/database"
	"github.com/renewables/repd-reconcile/internal/repositories/project"
	"github.com/renewables/repd-reconcile/pkg/logging"
	"github.com/renewables/repd-reconcile/pkg/models"
	"github.com/renewables/repd-reconcile/pkg/normalizers"
)

// defaultCountry is assumed for REPD rows without an explicit country.
const defaultCountry = "GB"

var (
	cfg  *config.Config
	db   *database.DatabaseInstance
	repo *project.Repository
)

func main() {
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	ctx := context.Background()
	db, err = database.Connect(ctx, cfg.DSN(), database.Options{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo = project.NewRepository(db, logger)

	rootCmd := &cobra.Command{
		Use:   "repd-loader",
		Short: "REPD catalogue loader",
		Long:  `Loads the Renewable Energy Planning Database extract into the reconciliation catalogue`,
	}

	rootCmd.AddCommand(createImportCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			if err := db.Ping(); err != nil {
				log.Fatalf("Database ping failed: %v", err)
			}
			fmt.Println("Database connection successful!")
		},
	}
}

// createStatsCmd creates a command to report catalogue counts
func createStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalogue table counts",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			count, err := repo.Count(ctx)
			if err != nil {
				log.Fatalf("Failed to count projects: %v", err)
			}
			fmt.Printf("Projects loaded: %d\n", count)

			for _, table := range []string{"site", "company", "technology"} {
				var n int
				if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
					log.Printf("Error counting %s records: %v", table, err)
					continue
				}
				fmt.Printf("%s records: %d\n", table, n)
			}
		},
	}
}

// createImportCmd creates a command to import a REPD CSV extract
func createImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Import a REPD CSV extract into the catalogue",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			start := time.Now()
			imported, skipped, err := importCSV(cmd.Context(), args[0])
			if err != nil {
				log.Fatalf("Import failed: %v", err)
			}
			fmt.Printf("Imported %d projects (%d rows skipped) in %s\n", imported, skipped, time.Since(start).Round(time.Millisecond))
		},
	}
}

func importCSV(ctx context.Context, path string) (imported, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	if _, ok := columns["Site Name"]; !ok {
		return 0, 0, fmt.Errorf("CSV is missing the Site Name column")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, skipped, err
		}

		row := csvRow{columns: columns, record: record}
		if err := importRow(ctx, row); err != nil {
			if err == errSkipRow {
				skipped++
				continue
			}
			return imported, skipped, err
		}
		imported++
	}

	return imported, skipped, nil
}

var errSkipRow = fmt.Errorf("row skipped")

type csvRow struct {
	columns map[string]int
	record  []string
}

// field returns the trimmed cell value for a header, or "" when the
// column is absent or blank.
func (r csvRow) field(name string) string {
	idx, ok := r.columns[name]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func importRow(ctx context.Context, row csvRow) error {
	name := row.field("Site Name")
	if name == "" {
		return errSkipRow
	}

	projectRow := &models.ProjectRow{
		CanonicalName:  name,
		NameNormalised: normalizers.NormalizeFacilityName(name),
		Status:         optional(row.field("Development Status")),
		CapacityMW:     parseFloat(row.field("Installed Capacity (MWelec)")),
		Country:        optional(defaultCountry),
	}

	if tech := row.field("Technology Type"); tech != "" {
		id, err := repo.GetOrCreateTechnology(ctx, tech)
		if err != nil {
			return err
		}
		projectRow.TechnologyID = &id
	}

	if operator := row.field("Operator (or Applicant)"); operator != "" {
		id, err := repo.GetOrCreateCompany(ctx, operator, normalizers.NormalizeCompany(operator))
		if err != nil {
			return err
		}
		projectRow.LeadCompany = &id
	}

	if address := row.field("Address"); address != "" {
		country := row.field("Country")
		if country == "" {
			country = defaultCountry
		}
		id, err := repo.GetOrCreateSite(ctx, project.SiteDetails{
			Name:       address,
			Normalised: normalizers.NormalizeFacilityName(address),
			Latitude:   parseFloat(row.field("Y-coordinate")),
			Longitude:  parseFloat(row.field("X-coordinate")),
			GridRef:    optional(row.field("Ref ID")),
			Authority:  optional(row.field("Local Authority")),
			Postcode:   optional(row.field("Postcode")),
			Country:    optional(country),
		})
		if err != nil {
			return err
		}
		projectRow.SiteID = &id
	}

	return repo.UpsertProject(ctx, projectRow)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}
