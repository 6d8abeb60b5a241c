package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/models"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("transport-ledger")

// RateLimiter is a simple fixed-window limiter backed by redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

// sessionMiddleware lifts the caller identity headers into the request
// context; every models function reads business/user from there.
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if businessId := c.GetHeader("x-business-id"); businessId != "" {
			ctx = utils.SetBusinessIdInContext(ctx, businessId)
		}
		if userIdStr := c.GetHeader("x-user-id"); userIdStr != "" {
			if userId, err := strconv.Atoi(userIdStr); err == nil {
				ctx = utils.SetUserIdInContext(ctx, userId)
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// respondError maps domain errors onto HTTP statuses. Validation failures
// carry the full violation list so the client can fix everything at once.
func respondError(c *gin.Context, err error) {
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "violations": ve.Violations})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseDateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required (YYYY-MM-DD)"})
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t, true
}

func parseOptionalDateParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
		return nil, false
	}
	return &t, true
}

func createLedgerEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "createLedgerEntry")
		defer span.End()

		var input models.NewLedgerEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		entry, err := models.CreateLedgerEntry(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func runningBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ledgerType := models.LedgerType(c.Param("ledgerType"))
		entityId, err := strconv.Atoi(c.Param("entityId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entity id must be an integer"})
			return
		}
		if !ledgerType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ledger type must be Client, Vendor or CashBank"})
			return
		}
		balance, err := models.GetRunningBalance(c.Request.Context(), ledgerType, entityId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ledger_type": ledgerType, "entity_id": entityId, "balance": balance})
	}
}

func ledgerHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ledgerType := models.LedgerType(c.Param("ledgerType"))
		entityId, err := strconv.Atoi(c.Param("entityId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entity id must be an integer"})
			return
		}
		if !ledgerType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ledger type must be Client, Vendor or CashBank"})
			return
		}
		fromDate, ok := parseOptionalDateParam(c, "from")
		if !ok {
			return
		}
		toDate, ok := parseOptionalDateParam(c, "to")
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))

		entries, err := models.GetLedgerHistory(c.Request.Context(), ledgerType, entityId, fromDate, toDate, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func recordCashTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "recordCashTransaction")
		defer span.End()

		var input models.NewCashTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		transaction, err := models.RecordCashTransaction(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, transaction)
	}
}

func softDeleteCashTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		deleted, err := models.SoftDeleteCashTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "deleted": deleted})
	}
}

func cashBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		before, ok := parseOptionalDateParam(c, "before")
		if !ok {
			return
		}
		var (
			balance decimal.Decimal
			err     error
		)
		if before != nil {
			balance, err = models.GetCashBalanceAsOf(c.Request.Context(), *before)
		} else {
			balance, err = models.GetCashBalance(c.Request.Context())
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	}
}

func dailyCashFlowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := parseDateParam(c, "date")
		if !ok {
			return
		}
		flow, err := models.GetDailyCashFlow(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, flow)
	}
}

func cashFlowSeriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := parseDateParam(c, "from")
		if !ok {
			return
		}
		to, ok := parseDateParam(c, "to")
		if !ok {
			return
		}
		series, err := models.GetDailyCashFlowSeries(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, series)
	}
}

func cashOutflowByModuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := parseDateParam(c, "from")
		if !ok {
			return
		}
		to, ok := parseDateParam(c, "to")
		if !ok {
			return
		}
		rows, err := models.GetCashOutflowByModule(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func cashSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := parseDateParam(c, "from")
		if !ok {
			return
		}
		to, ok := parseDateParam(c, "to")
		if !ok {
			return
		}
		summary, err := models.GetCashSummary(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func createTripHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "createTrip")
		defer span.End()

		var input models.NewTrip
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		trip, err := models.CreateTrip(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, trip)
	}
}

func receiveClientPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "receiveClientPayment")
		defer span.End()

		var input models.NewClientPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		payment, err := models.ReceiveClientPayment(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func payVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "payVendor")
		defer span.End()

		var input models.NewVendorPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		payment, err := models.PayVendor(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func recordExpenseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "recordExpense")
		defer span.End()

		var input models.NewExpense
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		expense, err := models.RecordExpense(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, expense)
	}
}

func createPayrollRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPayrollRun
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		run, err := models.CreatePayrollRun(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, run)
	}
}

type disbursePayrollRequest struct {
	AccountId int `json:"account_id"`
}

func disbursePayrollRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "disbursePayrollRun")
		defer span.End()

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var req disbursePayrollRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		run, err := models.DisbursePayrollRun(ctx, id, req.AccountId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// listHandler and getByIdHandler wrap the uniform list/fetch signatures the
// models package exposes for every entity.
func listHandler[T any](list func(context.Context) ([]*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := list(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func getByIdHandler[T any](get func(context.Context, int) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		item, err := get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

type toggleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func registerClientRoutes(r *gin.Engine) {
	r.POST("/clients", func(c *gin.Context) {
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		client, err := models.CreateClient(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, client)
	})
	r.GET("/clients", listHandler(models.ListClients))
	r.GET("/clients/:id", getByIdHandler(models.GetClient))
	r.PUT("/clients/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		client, err := models.UpdateClient(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	})
	r.POST("/clients/:id/active", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
			return
		}
		client, err := models.ToggleActiveClient(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	})
}

func registerVendorRoutes(r *gin.Engine) {
	r.POST("/vendors", func(c *gin.Context) {
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		vendor, err := models.CreateVendor(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, vendor)
	})
	r.GET("/vendors", listHandler(models.ListVendors))
	r.GET("/vendors/:id", getByIdHandler(models.GetVendor))
	r.PUT("/vendors/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		vendor, err := models.UpdateVendor(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	})
	r.POST("/vendors/:id/active", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
			return
		}
		vendor, err := models.ToggleActiveVendor(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	})
}

func registerMoneyAccountRoutes(r *gin.Engine) {
	r.POST("/money-accounts", func(c *gin.Context) {
		var input models.NewMoneyAccount
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		account, err := models.CreateMoneyAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, account)
	})
	r.GET("/money-accounts", listHandler(models.ListMoneyAccounts))
	r.GET("/money-accounts/:id", getByIdHandler(models.GetMoneyAccount))
	r.PUT("/money-accounts/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var input models.NewMoneyAccount
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		account, err := models.UpdateMoneyAccount(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, account)
	})
	r.POST("/money-accounts/:id/active", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
			return
		}
		account, err := models.ToggleActiveMoneyAccount(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, account)
	})
}

type updateTripStatusRequest struct {
	Status models.TripStatus `json:"status" binding:"required"`
}

func updateTripStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		var req updateTripStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		trip, err := models.UpdateTripStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before dependencies are ready; app endpoints return
	// 503 until the DB is connected.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-business-id", "x-user-id", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(sessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/ledger/entries", createLedgerEntryHandler())
	r.GET("/ledger/:ledgerType/:entityId/balance", runningBalanceHandler())
	r.GET("/ledger/:ledgerType/:entityId/history", ledgerHistoryHandler())

	r.POST("/cash/transactions", recordCashTransactionHandler())
	r.DELETE("/cash/transactions/:id", softDeleteCashTransactionHandler())
	r.GET("/cash/balance", cashBalanceHandler())
	r.GET("/cash/daily-flow", dailyCashFlowHandler())
	r.GET("/cash/flow-series", cashFlowSeriesHandler())
	r.GET("/cash/outflow-by-module", cashOutflowByModuleHandler())
	r.GET("/cash/summary", cashSummaryHandler())

	r.GET("/business", func(c *gin.Context) {
		business, err := models.GetBusiness(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, business)
	})

	registerClientRoutes(r)
	registerVendorRoutes(r)
	registerMoneyAccountRoutes(r)

	r.POST("/trips", createTripHandler())
	r.GET("/trips", listHandler(models.ListTrips))
	r.GET("/trips/:id", getByIdHandler(models.GetTrip))
	r.POST("/trips/:id/status", updateTripStatusHandler())

	r.POST("/client-payments", receiveClientPaymentHandler())
	r.GET("/client-payments", listHandler(models.ListClientPayments))
	r.GET("/client-payments/:id", getByIdHandler(models.GetClientPayment))
	r.POST("/vendor-payments", payVendorHandler())
	r.GET("/vendor-payments", listHandler(models.ListVendorPayments))
	r.GET("/vendor-payments/:id", getByIdHandler(models.GetVendorPayment))
	r.POST("/expenses", recordExpenseHandler())
	r.GET("/expenses", listHandler(models.ListExpenses))
	r.GET("/expenses/:id", getByIdHandler(models.GetExpense))
	r.POST("/payroll-runs", createPayrollRunHandler())
	r.GET("/payroll-runs", listHandler(models.ListPayrollRuns))
	r.GET("/payroll-runs/:id", getByIdHandler(models.GetPayrollRun))
	r.POST("/payroll-runs/:id/disburse", disbursePayrollRunHandler())

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("AutoMigrate failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// READ COMMITTED keeps the FOR UPDATE entity locks cheap; the balance fold
	// re-reads inside its own transaction anyway.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that collected errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
