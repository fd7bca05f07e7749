package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"zonekeeper/backend/internal/auth"
	"zonekeeper/backend/internal/cluster"
	"zonekeeper/backend/internal/dns"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// actorFrom builds the staging actor from the request's JWT claims
func actorFrom(r *http.Request) dns.Actor {
	claims, ok := r.Context().Value("claims").(*auth.Claims)
	if !ok {
		return dns.Actor{}
	}
	return dns.Actor{
		ID:    claims.UserID,
		Email: claims.Email,
		Admin: claims.IsAdmin(),
	}
}

// serviceError translates the error taxonomy to HTTP status codes
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dns.ErrInvalidRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dns.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, dns.ErrZoneLocked), errors.Is(err, dns.ErrRecordLocked):
		http.Error(w, err.Error(), http.StatusLocked)
	case errors.Is(err, dns.ErrNotFound), errors.Is(err, cluster.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
