// Package restaurants serves the public restaurant catalogue.
package restaurants

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jogardn/food-orders/internal/store"
	"github.com/jogardn/food-orders/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Repository interface {
	ListRestaurants(ctx context.Context, filter models.RestaurantFilter) ([]*models.Restaurant, error)
	RestaurantBySlug(ctx context.Context, slug string) (*models.RestaurantDetail, error)
}

type Handler struct {
	restaurants Repository
	logger      *logrus.Logger
}

func NewHandler(restaurants Repository, logger *logrus.Logger) *Handler {
	return &Handler{restaurants: restaurants, logger: logger}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/restaurants/", h.ListRestaurants).Methods(http.MethodGet)
	r.HandleFunc("/restaurants/{slug}/", h.GetRestaurant).Methods(http.MethodGet)
}

// FilterFromQuery reads ?city= and ?cuisine=. Cities are stored title-cased
// and cuisines are matched case-insensitively.
func FilterFromQuery(r *http.Request) models.RestaurantFilter {
	q := r.URL.Query()
	return models.RestaurantFilter{
		City:    cases.Title(language.Und).String(strings.TrimSpace(q.Get("city"))),
		Cuisine: cases.Lower(language.Und).String(strings.TrimSpace(q.Get("cuisine"))),
	}
}

func (h *Handler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	filter := FilterFromQuery(r)

	restaurants, err := h.restaurants.ListRestaurants(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"city":    filter.City,
			"cuisine": filter.Cuisine,
		}).Error("Failed to list restaurants")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to list restaurants")
		return
	}
	if restaurants == nil {
		restaurants = []*models.Restaurant{}
	}

	h.respondWithJSON(w, http.StatusOK, restaurants)
}

func (h *Handler) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	detail, err := h.restaurants.RestaurantBySlug(r.Context(), slug)
	if errors.Is(err, store.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Restaurant not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("slug", slug).Error("Failed to load restaurant")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to load restaurant")
		return
	}

	h.respondWithJSON(w, http.StatusOK, detail)
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, models.ErrorResponse{Success: false, Message: message})
}
