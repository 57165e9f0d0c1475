//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/flowride/flow/internal/cache"
	"github.com/flowride/flow/internal/config"
	"github.com/flowride/flow/internal/database"
	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/repository"
)

// College Station coordinates
const (
	baseLat = 30.6010
	baseLng = -96.3140
)

var (
	firstNames = []string{"James", "Maria", "David", "Sarah", "Carlos", "Emily", "Miguel", "Jessica", "Robert", "Ana",
		"Tyler", "Hannah", "Jose", "Megan", "Chris", "Lauren", "Kevin", "Rachel", "Brandon", "Sofia"}
	lastNames = []string{"Garcia", "Smith", "Johnson", "Martinez", "Brown", "Davis", "Rodriguez", "Wilson", "Lopez", "Taylor"}
	vehicles  = []string{"Toyota Camry", "Honda Civic", "Ford F-150", "Chevy Malibu", "Nissan Altima", "Hyundai Sonata"}
	plans     = []string{models.PaymentStyleCommission, models.PaymentStyleCommission, models.PaymentStyleMonthly, models.PaymentStyleYearly}
)

func main() {
	rand.Seed(time.Now().UnixNano())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	ctx := context.Background()

	riderRepo := repository.NewRiderRepository(db.DB)
	driverRepo := repository.NewDriverRepository(db.DB)
	index := cache.NewDriverIndex(redis.Client, cfg.GeohashPrecision)

	// Create riders
	log.Println("Creating 50 riders...")
	riderIDs := make([]string, 0)
	for i := 0; i < 50; i++ {
		rider := &models.Rider{
			Phone: fmt.Sprintf("979%07d", rand.Intn(10000000)),
			Name:  fmt.Sprintf("%s %s", firstNames[rand.Intn(len(firstNames))], lastNames[rand.Intn(len(lastNames))]),
		}

		if err := riderRepo.Create(ctx, rider); err != nil {
			log.Printf("Failed to create rider: %v", err)
			continue
		}
		riderIDs = append(riderIDs, rider.ID)
	}
	log.Printf("Created %d riders", len(riderIDs))

	// Create drivers
	log.Println("Creating 100 drivers...")
	driverIDs := make([]string, 0)

	for i := 0; i < 100; i++ {
		driver := &models.Driver{
			Phone:        fmt.Sprintf("936%07d", rand.Intn(10000000)),
			Name:         fmt.Sprintf("%s %s", firstNames[rand.Intn(len(firstNames))], lastNames[rand.Intn(len(lastNames))]),
			Vehicle:      vehicles[rand.Intn(len(vehicles))],
			LicensePlate: fmt.Sprintf("%s%s%s-%04d", letter(), letter(), letter(), rand.Intn(10000)),
			PaymentStyle: plans[rand.Intn(len(plans))],
			Rating:       4.0 + rand.Float64(),
		}

		if err := driverRepo.Create(ctx, driver); err != nil {
			log.Printf("Failed to create driver: %v", err)
			continue
		}
		driverIDs = append(driverIDs, driver.ID)

		// Put half of them online near campus
		if rand.Float64() > 0.5 {
			lat := baseLat + (rand.Float64()-0.5)*0.08
			lng := baseLng + (rand.Float64()-0.5)*0.08

			driverRepo.SetOnline(ctx, driver.ID, true)
			driverRepo.UpdateLocation(ctx, driver.ID, lat, lng)

			index.SetPresence(ctx, driver.ID, true, models.DriverStatusAvailable)
			index.Upsert(ctx, driver.ID, lat, lng)
		}
	}
	log.Printf("Created %d drivers", len(driverIDs))

	log.Println("\n=== Seed Data Summary ===")
	log.Printf("Riders created: %d", len(riderIDs))
	log.Printf("Drivers created: %d", len(driverIDs))
	log.Println("\nSample Rider ID:", riderIDs[0])
	log.Println("Sample Driver ID:", driverIDs[0])
	log.Println("\nYou can now test with these IDs!")
}

func letter() string {
	return string(rune('A' + rand.Intn(26)))
}
