package restaurants

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jogardn/food-orders/internal/store"
	"github.com/jogardn/food-orders/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type fakeRepository struct {
	filter  models.RestaurantFilter
	details map[string]*models.RestaurantDetail
}

func (r *fakeRepository) ListRestaurants(ctx context.Context, filter models.RestaurantFilter) ([]*models.Restaurant, error) {
	r.filter = filter
	var out []*models.Restaurant
	for _, d := range r.details {
		restaurant := d.Restaurant
		out = append(out, &restaurant)
	}
	return out, nil
}

func (r *fakeRepository) RestaurantBySlug(ctx context.Context, slug string) (*models.RestaurantDetail, error) {
	d, ok := r.details[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func newRouter(repo Repository) *mux.Router {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	router := mux.NewRouter()
	NewHandler(repo, logger).RegisterRoutes(router)
	return router
}

func TestListRestaurantsNormalizesFilter(t *testing.T) {
	repo := &fakeRepository{}
	rec := httptest.NewRecorder()

	newRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/restaurants/?city=new%20york&cuisine=ItaLIAN", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.filter.City != "New York" || repo.filter.Cuisine != "italian" {
		t.Errorf("filter = %+v", repo.filter)
	}
	if rec.Body.String() != "[]" {
		t.Errorf("body = %s, want []", rec.Body.String())
	}
}

func TestGetRestaurant(t *testing.T) {
	repo := &fakeRepository{details: map[string]*models.RestaurantDetail{
		"pasta-place": {
			Restaurant: models.Restaurant{ID: 2, Name: "Pasta Place", Slug: "pasta-place", DeliveryPrice: models.NewMoney(decimal.RequireFromString("12"))},
			Menu: models.Menu{
				Meals:  []models.Meal{{ID: 1, Name: "Carbonara", Price: models.NewMoney(decimal.RequireFromString("50")), Ingredients: []string{"egg", "guanciale"}}},
				Drinks: []models.Drink{},
			},
		},
	}}
	router := newRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/restaurants/pasta-place/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Name          string `json:"name"`
		DeliveryPrice string `json:"delivery_price"`
		Menu          struct {
			Meals []struct {
				Price string `json:"price"`
			} `json:"meals"`
		} `json:"menu"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Name != "Pasta Place" || body.DeliveryPrice != "12.00" || len(body.Menu.Meals) != 1 || body.Menu.Meals[0].Price != "50.00" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/restaurants/missing/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing restaurant status = %d, want 404", rec.Code)
	}
}
