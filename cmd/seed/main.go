package main

import (
	"context"
	"log"
	"os"
	"time"

	"cabinet-backend/internal/auth"
	"cabinet-backend/internal/config"
	"cabinet-backend/internal/db"
	"cabinet-backend/internal/models"
	"cabinet-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type seedService struct {
	Name        string
	Description string
	Category    string
	ForAudience string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	services := []seedService{
		{Name: "Consultation initiale", Description: "Premier entretien pour faire le point sur votre situation.", Category: "Consultation", ForAudience: "tous"},
		{Name: "Consultation de suivi", Description: "Entretien de suivi dans le cadre d'un accompagnement en cours.", Category: "Consultation", ForAudience: "tous"},
		{Name: "Consultation en ligne", Description: "Entretien a distance en visioconference.", Category: "Consultation", ForAudience: "tous"},
		{Name: "Bilan", Description: "Seance de synthese et d'orientation en fin d'accompagnement.", Category: "Bilan", ForAudience: "tous"},
	}

	for _, svc := range services {
		slug := utils.Slugify(svc.Name)
		filter := bson.M{"slug": slug}
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":         primitive.NewObjectID().Hex(),
				"name":        svc.Name,
				"description": svc.Description,
				"category":    svc.Category,
				"forAudience": svc.ForAudience,
				"slug":        slug,
				"createdAt":   time.Now().In(cfg.Timezone),
			},
		}

		_, err := cols.Services.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			log.Fatalf("seed error for %s: %v", svc.Name, err)
		}
	}

	username := envOrDefault("ADMIN_USER", "admin")
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Println("seed admin: ADMIN_PASSWORD missing, skipping admin user")
	} else if err := seedAdminUser(ctx, cols, username, os.Getenv("ADMIN_EMAIL"), password, cfg.Timezone); err != nil {
		log.Fatalf("seed admin error for %s: %v", username, err)
	}

	log.Println("seed completed")
}

func seedAdminUser(ctx context.Context, cols *db.Collections, username, email, password string, loc *time.Location) error {
	if cols == nil || cols.Users == nil {
		return nil
	}
	if username == "" || password == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now().In(loc)
	filter := bson.M{"username": username}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID().Hex(),
			"username":  username,
			"email":     email,
			"role":      models.UserRoleAdmin,
			"createdAt": now,
		},
		"$set": bson.M{
			"passwordHash": hash,
			"updatedAt":    now,
		},
	}

	_, err = cols.Users.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
