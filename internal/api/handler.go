package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"kasirpos/m/domain"
	"kasirpos/m/internal/catalog"
	"kasirpos/m/internal/promo"
	"kasirpos/m/internal/sale"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db       *sqlx.DB
	sales    *sale.Service
	catalog  *catalog.Service
	promos   *promo.Service
	secret   string
	logger   *zap.Logger
	registry *prometheus.Registry
}

// New constructs a Handler.
func New(db *sqlx.DB, sales *sale.Service, cat *catalog.Service, promos *promo.Service, secret string, logger *zap.Logger, registry *prometheus.Registry) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		db:       db,
		sales:    sales,
		catalog:  cat,
		promos:   promos,
		secret:   secret,
		logger:   logger,
		registry: registry,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if h.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Route("/sales", func(r chi.Router) {
		// Sales can be rung up by a logged-in cashier or as guest.
		r.With(h.optionalAuthMiddleware).Post("/", h.createSale)

		r.Group(func(pr chi.Router) {
			pr.Use(h.authMiddleware)
			pr.Get("/", h.listSales)
			pr.Get("/{id}", h.getSale)
			pr.Delete("/{id}", h.voidSale)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Get("/low-stock", h.lowStockProducts)
			r.Get("/barcode/{code}", h.productByBarcode)
		})

		pr.Get("/discounts/validate/{code}", h.validateDiscount)

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales/daily", h.dailySales)
			r.Get("/sales/summary", h.salesSummary)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

// bearerClaims extracts and verifies the bearer token on a request.
func (h *Handler) bearerClaims(r *http.Request) (*authClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, errors.New("missing bearer token")
	}
	return h.parseToken(strings.TrimSpace(header[len("Bearer "):]))
}

func (h *Handler) parseToken(tokenString string) (*authClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(h.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*authClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.bearerClaims(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuthMiddleware attaches the user when a token is supplied but
// lets anonymous requests through. A malformed token is still rejected.
func (h *Handler) optionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := h.bearerClaims(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func userIDFromContext(ctx context.Context) *int64 {
	if v, ok := ctx.Value(ctxUserID).(int64); ok {
		return &v
	}
	return nil
}

// Auth Handlers

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	// The very first account bootstraps the system; every later one
	// must be created by an admin.
	var userCount int64
	if err := h.db.GetContext(r.Context(), &userCount, `SELECT COUNT(*) FROM users`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to check existing users")
		return
	}
	if userCount > 0 {
		claims, err := h.bearerClaims(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if claims.Role != domain.RoleAdmin {
			respondError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" || req.FullName == "" {
		respondError(w, http.StatusBadRequest, "username, password and full_name are required")
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleCashier
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleCashier {
		respondError(w, http.StatusBadRequest, "role must be admin or kasir")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to hash password")
		return
	}

	var userID int64
	err = h.db.QueryRowxContext(r.Context(),
		`INSERT INTO users (username, password_hash, full_name, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		req.Username, string(hashed), req.FullName, req.Role).Scan(&userID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "username already taken")
		return
	}

	token, err := h.generateToken(userID, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Token: token,
		User: domain.User{
			ID:       userID,
			Username: req.Username,
			FullName: req.FullName,
			Role:     req.Role,
			IsActive: true,
		},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.GetContext(r.Context(), &user,
		`SELECT id, username, password_hash, full_name, role, is_active, created_at FROM users WHERE username = $1 AND is_active = 1`,
		req.Username)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Catalog handlers

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("list products", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) lowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.LowStock(r.Context())
	if err != nil {
		h.logger.Error("list low-stock products", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to list low-stock products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) productByBarcode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	product, err := h.catalog.FindByBarcode(r.Context(), code)
	if errors.Is(err, domain.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("product by barcode", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to look up product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// Discount handlers

func (h *Handler) validateDiscount(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var subtotal int64
	if raw := strings.TrimSpace(r.URL.Query().Get("subtotal")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "subtotal must be a non-negative integer")
			return
		}
		subtotal = parsed
	}

	discount, amount, err := h.promos.Preview(r.Context(), code, subtotal, time.Now().UTC())
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"discount":        discount,
		"discount_amount": amount,
		"total":           subtotal - amount,
	})
}

// Sale handlers

type createSaleRequest struct {
	Items         []sale.CartItem `json:"items"`
	DiscountCode  string          `json:"discount_code,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	Paid          int64           `json:"paid"`
	Notes         string          `json:"notes,omitempty"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}

	receipt, err := h.sales.Create(r.Context(), sale.CreateRequest{
		Items:         req.Items,
		DiscountCode:  req.DiscountCode,
		PaymentMethod: req.PaymentMethod,
		Paid:          req.Paid,
		Notes:         req.Notes,
		UserID:        userIDFromContext(r.Context()),
		CustomerID:    req.CustomerID,
	})
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	receipt, err := h.sales.Get(r.Context(), id)
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	var filter sale.ListFilter

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("date_from")); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date_from must be in YYYY-MM-DD format")
			return
		}
		filter.DateFrom = &from
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("date_to")); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date_to must be in YYYY-MM-DD format")
			return
		}
		// inclusive end of day
		to = to.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &to
	}

	filter.PaymentMethod = strings.TrimSpace(r.URL.Query().Get("payment_method"))
	if filter.PaymentMethod != "" && !domain.ValidPaymentMethod(filter.PaymentMethod) {
		respondError(w, http.StatusBadRequest, domain.ErrInvalidPaymentMethod.Error())
		return
	}

	filter.IncludeVoided = r.URL.Query().Get("include_voided") == "true"

	receipts, err := h.sales.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list sales", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to list sales")
		return
	}
	respondJSON(w, http.StatusOK, receipts)
}

func (h *Handler) voidSale(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := h.sales.Void(r.Context(), id); err != nil {
		h.respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "transaction voided"})
}

// Reports

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var revenue, profit, count int64
	err := h.db.QueryRowContext(r.Context(),
		`SELECT COALESCE(SUM(total),0), COALESCE(SUM(total - cost_total),0), COUNT(*)
         FROM transactions WHERE voided_at IS NULL AND DATE(created_at) = DATE('now')`).
		Scan(&revenue, &profit, &count)
	if err != nil {
		h.logger.Error("daily sales report", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch daily sales")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"revenue": revenue, "profit": profit, "sales_count": count})
}

func (h *Handler) salesSummary(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}

	var (
		args    []any
		clauses = []string{"voided_at IS NULL"}
	)

	startDate := strings.TrimSpace(r.URL.Query().Get("start_date"))
	if startDate != "" {
		if _, err := time.Parse("2006-01-02", startDate); err != nil {
			respondError(w, http.StatusBadRequest, "start_date must be in YYYY-MM-DD format")
			return
		}
		args = append(args, startDate)
		clauses = append(clauses, "DATE(created_at) >= $"+strconv.Itoa(len(args)))
	}

	endDate := strings.TrimSpace(r.URL.Query().Get("end_date"))
	if endDate != "" {
		if _, err := time.Parse("2006-01-02", endDate); err != nil {
			respondError(w, http.StatusBadRequest, "end_date must be in YYYY-MM-DD format")
			return
		}
		args = append(args, endDate)
		clauses = append(clauses, "DATE(created_at) <= $"+strconv.Itoa(len(args)))
	}

	query := `SELECT COALESCE(SUM(total),0), COALESCE(SUM(total - cost_total),0), COALESCE(SUM(discount_amount),0), COUNT(*)
              FROM transactions WHERE ` + strings.Join(clauses, " AND ")

	var revenue, profit, discounts, count int64
	if err := h.db.QueryRowContext(r.Context(), query, args...).Scan(&revenue, &profit, &discounts, &count); err != nil {
		h.logger.Error("sales summary report", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch sales summary")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{
		"revenue":        revenue,
		"profit":         profit,
		"discount_total": discounts,
		"sales_count":    count,
	})
}

// Error mapping

func (h *Handler) respondSaleError(w http.ResponseWriter, err error) {
	var (
		stockErr *domain.InsufficientStockError
		minErr   *domain.MinPurchaseError
		payErr   *domain.PaymentShortfallError
	)
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrTransactionVoided):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrDiscountNotFound),
		errors.Is(err, domain.ErrDiscountExpired),
		errors.Is(err, domain.ErrDiscountExhausted),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.As(err, &stockErr),
		errors.As(err, &minErr),
		errors.As(err, &payErr):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("sale operation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to process sale")
	}
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
