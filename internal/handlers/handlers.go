package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/auth"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
)

// currentUser resolves the authenticated user from the Authorization
// header (Bearer token), falling back to the token query parameter for
// clients that cannot set headers.
func currentUser(r *http.Request, authService *auth.Service) (*models.User, error) {
	tokenStr := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		tokenStr = strings.TrimPrefix(header, "Bearer ")
	}
	if tokenStr == "" {
		tokenStr = r.URL.Query().Get("token")
	}
	if tokenStr == "" {
		return nil, fmt.Errorf("missing token")
	}

	return authService.GetUserFromToken(r.Context(), tokenStr)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
