package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"librotek/errs"
	"librotek/middleware"
	"librotek/models"
	"librotek/store"
	"librotek/utils"
)

const tokenTTL = 24 * time.Hour

var validRoles = map[string]bool{
	"admin":    true,
	"borrower": true,
}

type AuthHandler struct {
	Store store.Store
}

func NewAuthHandler(st store.Store) *AuthHandler {
	return &AuthHandler{Store: st}
}

// Register creates a new account. The role defaults to borrower; only
// the seed CLI or an existing admin creates admin accounts.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, errs.E(errs.Validation, "auth.register", "invalid payload"))
		return
	}
	if payload.Email == "" || payload.Password == "" {
		respondError(w, errs.E(errs.Validation, "auth.register", "email and password are required"))
		return
	}

	role := payload.Role
	if role == "" {
		role = "borrower"
	}
	if role != "borrower" {
		respondError(w, errs.E(errs.Validation, "auth.register", "self-registration is limited to the borrower role"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, errs.Wrap(errs.Dependency, "auth.register", err))
		return
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Email:     payload.Email,
		Password:  string(hashed),
		Name:      payload.Name,
		Phone:     payload.Phone,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"message": "user created successfully"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errs.E(errs.Validation, "auth.login", "invalid payload"))
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, errs.E(errs.Validation, "auth.login", "email and password are required"))
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.Role, tokenTTL)
	if err != nil {
		respondError(w, errs.Wrap(errs.Dependency, "auth.login", err))
		return
	}

	respondJSON(w, http.StatusOK, models.LoginResponse{
		Token: token,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.Store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateProfile lets a user change their own name and phone.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.Store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	var payload struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, errs.E(errs.Validation, "auth.update_profile", "invalid payload"))
		return
	}
	if payload.Name != "" {
		user.Name = payload.Name
	}
	user.Phone = payload.Phone

	if err := h.Store.UpdateUser(r.Context(), user); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "profile updated"})
}

func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// UpdateUser is the admin edit of another account, role included.
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := h.Store.GetUserByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	var payload struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, errs.E(errs.Validation, "auth.update_user", "invalid payload"))
		return
	}
	if payload.Role != "" {
		if !validRoles[payload.Role] {
			respondError(w, errs.E(errs.Validation, "auth.update_user", "role must be admin or borrower"))
			return
		}
		user.Role = payload.Role
	}
	if payload.Name != "" {
		user.Name = payload.Name
	}
	if payload.Phone != "" {
		user.Phone = payload.Phone
	}

	if err := h.Store.UpdateUser(r.Context(), user); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user updated"})
}

func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Store.DeleteUser(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
