package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"masjidflow/models"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Println("usage: go run ./cmd/create_user <name> <email> <countryCode> <phone>")
		os.Exit(2)
	}
	name := os.Args[1]
	email := os.Args[2]
	countryCode := os.Args[3]
	phone := os.Args[4]

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	// check existing
	var existing models.User
	if err := db.Where("phone = ? AND country_code = ?", phone, countryCode).First(&existing).Error; err == nil {
		fmt.Printf("user with phone %s%s already exists (id=%s)\n", countryCode, phone, existing.ID)
		os.Exit(0)
	}

	user := models.User{
		Name:        name,
		Email:       email,
		Phone:       phone,
		CountryCode: countryCode,
		// Created from the CLI, so no code was ever sent to the phone.
		IsPhoneVerified: false,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created user %s id=%s\n", name, user.ID)
}
