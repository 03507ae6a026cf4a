package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"librotek/handlers"
	"librotek/memstore"
	"librotek/middleware"
	"librotek/service"
	"librotek/store"
	"librotek/utils"
	"librotek/workers"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()

	// ============================================
	// STORAGE CONFIGURATION
	// ============================================
	var st store.Store
	if getenv("STORAGE", "mysql") == "memory" {
		st = memstore.New()
		log.Println("Using in-memory storage (data is lost on restart)")
	} else {
		dbUser := getenv("DB_USER", "root")
		dbPass := getenv("DB_PASS", "")
		dbHost := getenv("DB_HOST", "localhost")
		dbPort := getenv("DB_PORT", "3306")
		dbName := getenv("DB_NAME", "librotek")

		// DSN format: user:password@tcp(host:port)/dbname?parseTime=true
		dsn := dbUser + ":" + dbPass + "@tcp(" + dbHost + ":" + dbPort + ")/" + dbName + "?parseTime=true"

		mysqlStore, err := store.NewMySQLStore(ctx, dsn)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := mysqlStore.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		st = mysqlStore
		log.Println("Connected to MySQL database")
	}
	defer st.Close()

	// ============================================
	// POLICY SETTINGS
	// ============================================
	settings, err := st.GetSettings(ctx)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	loanPeriod := time.Duration(settings.LoanPeriodDays) * 24 * time.Hour
	otpTTL := time.Duration(settings.OTPTTLMinutes) * time.Minute
	if v := os.Getenv("LOAN_PERIOD_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			loanPeriod = time.Duration(days) * 24 * time.Hour
		}
	}
	if v := os.Getenv("OTP_TTL_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			otpTTL = time.Duration(mins) * time.Minute
		}
	}
	log.Printf("Loan period: %v, OTP TTL: %v", loanPeriod, otpTTL)

	// ============================================
	// SERVICES
	// ============================================
	hub := utils.NewHub()
	go hub.Run()

	dispatcher := service.LogDispatcher{}
	gate := service.NewOTPGate(st, dispatcher, otpTTL)
	orch := service.NewOrchestrator(st, st, loanPeriod)

	notifier := workers.NewNotifier(st, dispatcher, hub, 24*time.Hour)
	notifier.Start(ctx)

	// ============================================
	// HANDLERS
	// ============================================
	authHandler := handlers.NewAuthHandler(st)
	bookHandler := handlers.NewBookHandler(st)
	borrowHandler := handlers.NewBorrowHandler(st, gate, orch, hub)
	reportHandler := handlers.NewReportHandler(st, orch)
	notifHandler := handlers.NewNotificationHandler(st, hub)

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.Auth(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.Auth(middleware.RequireRole("admin")(h))
	}

	// ============================================
	// ROUTES
	// ============================================
	r := mux.NewRouter()

	// Public
	r.HandleFunc("/api/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/login", authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/books", bookHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/api/books/{id}", bookHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/books/{id}/ratings", bookHandler.Ratings).Methods(http.MethodGet)

	// Authenticated
	r.Handle("/api/profile", authed(authHandler.Profile)).Methods(http.MethodGet)
	r.Handle("/api/profile", authed(authHandler.UpdateProfile)).Methods(http.MethodPut)
	r.Handle("/api/otp/request", authed(borrowHandler.RequestOTP)).Methods(http.MethodPost)
	r.Handle("/api/borrows", authed(borrowHandler.Borrow)).Methods(http.MethodPost)
	r.Handle("/api/borrows/mine", authed(borrowHandler.ListMine)).Methods(http.MethodGet)
	// Fixed paths must precede the {id} routes; mux matches in order.
	r.Handle("/api/borrows/active", admin(borrowHandler.ListActive)).Methods(http.MethodGet)
	r.Handle("/api/borrows/overdue", admin(borrowHandler.ListOverdue)).Methods(http.MethodGet)
	r.Handle("/api/borrows/{id}", authed(borrowHandler.Get)).Methods(http.MethodGet)
	r.Handle("/api/borrows/{id}/return", authed(borrowHandler.Return)).Methods(http.MethodPost)
	r.Handle("/api/books/{id}/ratings", authed(bookHandler.Rate)).Methods(http.MethodPost)
	r.Handle("/api/notifications", authed(notifHandler.List)).Methods(http.MethodGet)
	r.Handle("/api/notifications/{id}/read", authed(notifHandler.MarkRead)).Methods(http.MethodPost)
	r.Handle("/api/notifications/{id}", authed(notifHandler.Delete)).Methods(http.MethodDelete)
	r.Handle("/ws", authed(notifHandler.ServeWS))

	// Admin
	r.Handle("/api/users", admin(authHandler.ListUsers)).Methods(http.MethodGet)
	r.Handle("/api/users/{id}", admin(authHandler.UpdateUser)).Methods(http.MethodPut)
	r.Handle("/api/users/{id}", admin(authHandler.DeleteUser)).Methods(http.MethodDelete)
	r.Handle("/api/books", admin(bookHandler.Create)).Methods(http.MethodPost)
	r.Handle("/api/books/{id}", admin(bookHandler.Update)).Methods(http.MethodPut)
	r.Handle("/api/books/{id}", admin(bookHandler.Delete)).Methods(http.MethodDelete)
	r.Handle("/api/books/{id}/status", admin(bookHandler.SetStatus)).Methods(http.MethodPut)
	r.Handle("/api/books/{id}/qr", admin(bookHandler.QRPayload)).Methods(http.MethodGet)
	r.Handle("/api/books/{id}/logs", admin(bookHandler.Logs)).Methods(http.MethodGet)
	r.Handle("/api/books/{id}/history", admin(bookHandler.History)).Methods(http.MethodGet)
	r.Handle("/api/borrows", admin(borrowHandler.List)).Methods(http.MethodGet)
	r.Handle("/api/reports/most-borrowed", admin(reportHandler.MostBorrowed)).Methods(http.MethodGet)
	r.Handle("/api/reports/highest-rated", admin(reportHandler.HighestRated)).Methods(http.MethodGet)
	r.Handle("/api/reports/consistency", admin(reportHandler.Consistency)).Methods(http.MethodGet)
	r.Handle("/api/notifications/send", admin(notifHandler.Send)).Methods(http.MethodPost)

	handler := middleware.Logging(r)

	// ============================================
	// SERVER
	// ============================================
	port := getenv("PORT", "8080")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Printf("Server running on http://localhost:%s", port)
	log.Fatal(srv.ListenAndServe())
}
