// Package pricing lists subscription plans priced for the caller's country.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/platform/httpclient"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultCountry is assumed when the location lookup has no answer.
const DefaultCountry = "INDIA"

var ErrMissingAPIKey = common.NewAPIError(http.StatusBadRequest, "MISSING_API_KEY", common.MsgMissingAPIKey)

// Locator resolves the country of a client address.
type Locator interface {
	Country(ctx context.Context, ip string) (string, error)
}

// IPStack looks countries up on ipstack.com and caches the answers per address.
type IPStack struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *cache.Cache
	logger  *zap.Logger
}

func NewIPStack(cfg *config.Config, logger *zap.Logger) *IPStack {
	return &IPStack{
		baseURL: strings.TrimSuffix(strings.TrimSuffix(cfg.IPStackURL, "/"), "/check"),
		apiKey:  cfg.IPStackAPIKey,
		client:  httpclient.New(10 * time.Second),
		cache:   cache.New(24*time.Hour, time.Hour),
		logger:  logger,
	}
}

// lookupTarget is the client address, or "check" (the caller of the API) for private and
// unparseable addresses.
func lookupTarget(ip string) string {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() {
		return "check"
	}
	return addr.String()
}

func (s *IPStack) Country(ctx context.Context, ip string) (string, error) {
	target := lookupTarget(ip)
	if country, ok := s.cache.Get(target); ok {
		return country.(string), nil
	}

	u := s.baseURL + "/" + url.PathEscape(target) + "?" + url.Values{"access_key": {s.apiKey}, "fields": {"country_name"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipstack lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipstack lookup: status %d", resp.StatusCode)
	}
	var body struct {
		CountryName string `json:"country_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode ipstack response: %w", err)
	}
	country := body.CountryName
	if country == "" {
		country = DefaultCountry
	}
	s.cache.SetDefault(target, country)
	return country, nil
}

type Service struct {
	repo    Repository
	locator Locator
	enabled bool
	logger  *zap.Logger
}

func NewService(repo Repository, locator Locator, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{repo: repo, locator: locator, enabled: cfg.IPStackAPIKey != "", logger: logger}
}

// Prices returns every plan category priced for the country of ip.
func (s *Service) Prices(ctx context.Context, ip string) ([]CountryPrices, error) {
	if !s.enabled {
		return nil, ErrMissingAPIKey
	}
	country, err := s.locator.Country(ctx, ip)
	if err != nil {
		s.logger.Warn("Country lookup failed, using default", zap.String("ip", ip), zap.Error(err))
		country = DefaultCountry
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		s.logger.Error("Failed to load pricing", zap.Error(err))
		return nil, err
	}
	return ForCountry(country, categories), nil
}

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/pricing/get_prices", h.prices)
}

func (h *Handler) prices(c *gin.Context) {
	prices, err := h.service.Prices(c.Request.Context(), c.ClientIP())
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKPricing, prices)
}
