package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/pilatesloop/backend/internal/config"
	"github.com/pilatesloop/backend/internal/db"
	"github.com/pilatesloop/backend/internal/studios"
	"github.com/pilatesloop/backend/internal/workouts"

	"github.com/brianvoe/gofakeit/v6"
	log "github.com/sirupsen/logrus"
)

// seeds the database with fake studios and workout logs,
// meant for local development only
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	studiosCount := flag.Int("studios", 10, "number of studios to create")
	usersCount := flag.Int("users", 3, "number of fake users to create workout logs for")
	workoutsPerUser := flag.Int("workouts", 30, "number of workout logs per user")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	if cfg.Environment == "prod" || cfg.Environment == "production" {
		log.Fatalln("refusing to seed a production database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: cfg.PostgresHost,
		DBPort: cfg.PostgresPort,
		DBName: cfg.PostgresDBName,
	})
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	studiosRepo := studios.NewRepo(dbPool)
	var studioIDs []int
	for i := 0; i < *studiosCount; i++ {
		added, err := studiosRepo.Add(ctx, randomStudio())
		if err != nil {
			log.Errorf("add studio: %s", err)
			continue
		}
		studioIDs = append(studioIDs, added.ID)
	}
	log.Infof("created %d studios", len(studioIDs))

	workoutsRepo := workouts.NewRepo(dbPool)
	totalWorkouts := 0
	for u := 0; u < *usersCount; u++ {
		userID := gofakeit.UUID()
		for w := 0; w < *workoutsPerUser; w++ {
			workout := randomWorkout(userID, studioIDs)
			if _, err := workoutsRepo.Add(ctx, workout); err != nil {
				log.Errorf("add workout for user %s: %s", userID, err)
				continue
			}
			totalWorkouts++
		}
		log.Infof("user %s seeded", userID)
	}
	log.Infof("created %d workout logs", totalWorkouts)

	fmt.Println("done 💪")
}

func randomStudio() studios.Studio {
	return studios.Studio{
		Name:      gofakeit.Company() + " Pilates",
		Address:   gofakeit.Street(),
		City:      gofakeit.City(),
		Latitude:  gofakeit.Latitude(),
		Longitude: gofakeit.Longitude(),
		Phone:     gofakeit.Phone(),
		Website:   gofakeit.URL(),
		CreatedAt: time.Now(),
	}
}

func randomWorkout(userID string, studioIDs []int) workouts.WorkoutLog {
	workoutTypes := []workouts.WorkoutType{
		workouts.TypeReformer, workouts.TypeMat, workouts.TypeTower, workouts.TypeOther,
	}
	focusAreas := []string{"core", "glutes", "legs", "arms", "back", "mobility"}

	// spread the dates over the last ~3 months, with some duplicates
	daysAgo := rand.Intn(90)
	workoutDate := workouts.DateOnly(time.Now().AddDate(0, 0, -daysAgo))

	workout := workouts.WorkoutLog{
		UserID:          userID,
		WorkoutDate:     workoutDate,
		DurationMinutes: 20 + rand.Intn(70),
		WorkoutType:     workoutTypes[rand.Intn(len(workoutTypes))],
		RPE:             1 + rand.Intn(10),
		FocusAreas:      []string{focusAreas[rand.Intn(len(focusAreas))]},
		IsShared:        gofakeit.Bool(),
	}

	if gofakeit.Bool() {
		calories := 100 + rand.Float64()*400
		workout.CalorieEstimate = &calories
	}

	if len(studioIDs) > 0 && gofakeit.Bool() {
		studioID := studioIDs[rand.Intn(len(studioIDs))]
		workout.StudioID = &studioID
	} else if gofakeit.Bool() {
		workout.CustomStudioName = gofakeit.Company() + " Studio"
	}

	return workout
}
