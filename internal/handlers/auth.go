package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"zonekeeper/backend/internal/audit"
	"zonekeeper/backend/internal/auth"
	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"
)

type AuthHandler struct {
	db *database.DB
}

func NewAuthHandler(db *database.DB) *AuthHandler {
	return &AuthHandler{db: db}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var user models.User
	err := h.db.Get(&user, `SELECT * FROM users WHERE email = $1`, req.Email)
	if err != nil {
		audit.Log(audit.EventLoginFailed, req.Email, "", nil)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		audit.Log(audit.EventLoginFailed, user.ID.String(), "", nil)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	audit.Log(audit.EventLogin, user.ID.String(), "", nil)

	user.PasswordHash = ""
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	var user models.User
	err = h.db.Get(&user, `
		INSERT INTO users (email, name, password_hash, role)
		VALUES ($1, NULLIF($2, ''), $3, 'user')
		RETURNING *
	`, req.Email, req.Name, hash)
	if err != nil {
		log.Printf("Failed to create user: %v", err)
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}

	audit.Log(audit.EventUserCreated, user.ID.String(), "", nil)

	token, err := auth.GenerateToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	user.PasswordHash = ""
	writeJSON(w, http.StatusCreated, LoginResponse{Token: token, User: user})
}

// Me returns the authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*auth.Claims)

	var user models.User
	err := h.db.Get(&user, `SELECT * FROM users WHERE id = $1`, claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	user.PasswordHash = ""
	writeJSON(w, http.StatusOK, user)
}
