// Command seedadmin bootstraps the first admin account. It connects
// with the same DB_* environment variables as the server, prompts for
// the admin's details and writes the user with a bcrypt-hashed
// password.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"librotek/models"
	"librotek/store"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

func main() {
	ctx := context.Background()

	dbUser := getenv("DB_USER", "root")
	dbPass := getenv("DB_PASS", "")
	dbHost := getenv("DB_HOST", "localhost")
	dbPort := getenv("DB_PORT", "3306")
	dbName := getenv("DB_NAME", "librotek")
	dsn := dbUser + ":" + dbPass + "@tcp(" + dbHost + ":" + dbPort + ")/" + dbName + "?parseTime=true"

	st, err := store.NewMySQLStore(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()
	if err := st.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)
	email, err := readLine(reader, "Admin email: ")
	if err != nil {
		log.Fatal(err)
	}
	name, err := readLine(reader, "Admin name: ")
	if err != nil {
		log.Fatal(err)
	}
	password, err := readPassword("Admin password: ")
	if err != nil {
		log.Fatal(err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		log.Fatal(err)
	}

	if email == "" || name == "" || password == "" {
		log.Fatal("email, name and password are all required")
	}
	if password != confirm {
		log.Fatal("passwords do not match")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  string(hashed),
		Name:      name,
		Role:      "admin",
		CreatedAt: time.Now(),
	}
	if err := st.CreateUser(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	fmt.Printf("Admin account %s created.\n", email)
}
