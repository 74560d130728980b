package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"texplicit_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Categories(ctx context.Context) ([]Category, error) {
	args := m.Called(ctx)
	cats, _ := args.Get(0).([]Category)
	return cats, args.Error(1)
}

type fixedLocator struct {
	country string
	err     error
}

func (f fixedLocator) Country(context.Context, string) (string, error) { return f.country, f.err }

func sampleCategories() []Category {
	both := func(inr, usd float64) []Price {
		return []Price{{CurrencyCode: "INR", Value: inr}, {CurrencyCode: "USD", Value: usd}}
	}
	return []Category{
		{Category: "report_pricing", Documents: []Plan{
			{Count: 10, Pricing: both(499, 9)},
			{Count: 50, Pricing: []Price{{CurrencyCode: "INR", Value: 1999}}},
		}},
		{Category: "document_pricing", Documents: []Plan{
			{Amount: &Amount{Value: 5, Unit: "GB"}, Pricing: both(299, 5)},
		}},
		{Category: "chat_pricing", Documents: []Plan{
			{Count: 100, Pricing: []Price{{CurrencyCode: "INR", Value: 99}}},
		}},
	}
}

func TestForCountry(t *testing.T) {
	us := ForCountry("United States", sampleCategories())
	require.Len(t, us, 2)
	assert.Equal(t, "Report Pricing", us[0].Category)
	assert.Equal(t, "USD", us[0].CurrencyCode)
	require.Len(t, us[0].Plans, 1)
	assert.Equal(t, 10.0, *us[0].Plans[0].Count)
	assert.Equal(t, 9.0, us[0].Plans[0].Price)
	assert.Equal(t, "Document Pricing", us[1].Category)
	assert.Nil(t, us[1].Plans[0].Count)
	assert.Equal(t, &Amount{Value: 5, Unit: "GB"}, us[1].Plans[0].Amount)

	india := ForCountry("India", sampleCategories())
	require.Len(t, india, 3)
	assert.Equal(t, "INR", india[2].CurrencyCode)
	assert.Len(t, india[0].Plans, 2)
}

func TestPricesFallsBackToDefaultCountry(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Categories", mock.Anything).Return(sampleCategories(), nil)
	s := NewService(repo, fixedLocator{err: errors.New("quota exceeded")}, &config.Config{IPStackAPIKey: "k"}, zap.NewNop())

	prices, err := s.Prices(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	require.NotEmpty(t, prices)
	assert.Equal(t, "INR", prices[0].CurrencyCode)
}

func TestPricesRequiresAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &mockRepo{}
	router := gin.New()
	NewHandler(NewService(repo, fixedLocator{}, &config.Config{}, zap.NewNop()), zap.NewNop()).RegisterRoutes(router.Group(""))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pricing/get_prices", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "Categories", mock.Anything)
}

func TestIPStackLookupIsCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/8.8.8.8", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("access_key"))
		w.Write([]byte(`{"country_name":"United States"}`))
	}))
	defer srv.Close()

	loc := NewIPStack(&config.Config{IPStackURL: srv.URL + "/check", IPStackAPIKey: "secret"}, zap.NewNop())
	for i := 0; i < 2; i++ {
		country, err := loc.Country(context.Background(), "8.8.8.8")
		require.NoError(t, err)
		assert.Equal(t, "United States", country)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestLookupTarget(t *testing.T) {
	assert.Equal(t, "check", lookupTarget("127.0.0.1"))
	assert.Equal(t, "check", lookupTarget("10.1.2.3"))
	assert.Equal(t, "check", lookupTarget("not-an-ip"))
	assert.Equal(t, "1.1.1.1", lookupTarget(" 1.1.1.1 "))
}
