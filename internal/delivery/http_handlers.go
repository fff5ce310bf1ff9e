package delivery

import (
	"context"
	"net/http"
	"time"

	"adsreport/internal/usecase"
	"adsreport/pkg/logger"
	"adsreport/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handles HTTP requests
type HTTPHandlers struct {
	reportService *usecase.ReportService
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

// creates new HTTP handlers
func NewHTTPHandlers(
	reportService *usecase.ReportService,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *HTTPHandlers {
	return &HTTPHandlers{
		reportService: reportService,
		logger:        logger,
		metrics:       metrics,
	}
}

// triggers a reporting pipeline run
func (h *HTTPHandlers) ReportRun(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	log := h.logger.WithContext(ctx)
	log.Info("Starting report run")

	since, until, err := parseDateRange(c)
	if err != nil {
		h.metrics.RecordHTTPRequest("POST", "/report/run", "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid date format",
			"message":    "Dates must be in YYYY-MM-DD format",
			"request_id": requestID,
		})
		return
	}

	summary, err := h.reportService.Run(ctx, since, until)
	if err != nil {
		h.metrics.RecordHTTPRequest("POST", "/report/run", "500", time.Since(start))
		log.WithError(err).Error("Report run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Report run failed",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("POST", "/report/run", "200", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"message":    "Report run completed successfully",
		"summary":    summary,
		"request_id": requestID,
	})
}

// GetLastRun returns the summary of the most recent pipeline run
func (h *HTTPHandlers) GetLastRun(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()

	summary := h.reportService.LastRun()
	if summary == nil {
		h.metrics.RecordHTTPRequest("GET", "/report/last", "404", time.Since(start))
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "No completed runs",
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", "/report/last", "200", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"summary":    summary,
		"request_id": requestID,
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()

	apiInfo := gin.H{
		"api_version": "v1",
		"service":     "Ads Reporting Service",
		"version":     "1.0.0",
		"description": "Pulls ad insights, normalizes and aggregates them into report tables, and publishes them to a spreadsheet",
		"endpoints": gin.H{
			"report": gin.H{
				"description": "Reporting pipeline operations",
				"endpoints": gin.H{
					"run": gin.H{
						"path":        "/api/v1/report/run",
						"methods":     []string{"POST"},
						"description": "Run the full reporting pipeline for a date range",
						"parameters": gin.H{
							"since": "Optional start date (YYYY-MM-DD); defaults to first campaign date",
							"until": "Optional end date (YYYY-MM-DD); defaults to yesterday",
						},
						"example": "/api/v1/report/run?since=2025-01-01&until=2025-01-31",
					},
					"last": gin.H{
						"path":        "/api/v1/report/last",
						"methods":     []string{"GET"},
						"description": "Summary of the most recent completed run",
					},
				},
			},
		},
		"report_tables": gin.H{
			"ad_daily":        "Finest grain: one row per ad per day, all columns",
			"messages_daily":  "Account totals per day",
			"campaign_daily":  "Campaign totals per day",
			"campaign_period": "Campaign totals across the whole range with activity-span rates",
			"adset_daily":     "Ad set totals per day",
			"top_ads_period":  "Ads ranked by total messages across the period",
		},
		"request_id": requestID,
	}

	h.metrics.RecordHTTPRequest("GET", "/api/v1", "200", time.Since(start))
	c.JSON(http.StatusOK, apiInfo)
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()

	health := gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "adsreport",
		"version":    "1.0.0",
		"request_id": requestID,
	}

	h.metrics.RecordHTTPRequest("GET", "/health", "200", time.Since(start))
	c.JSON(http.StatusOK, health)
}

func parseDateRange(c *gin.Context) (since, until *time.Time, err error) {
	if sinceStr := c.Query("since"); sinceStr != "" {
		parsed, parseErr := time.Parse("2006-01-02", sinceStr)
		if parseErr != nil {
			return nil, nil, parseErr
		}
		since = &parsed
	}
	if untilStr := c.Query("until"); untilStr != "" {
		parsed, parseErr := time.Parse("2006-01-02", untilStr)
		if parseErr != nil {
			return nil, nil, parseErr
		}
		until = &parsed
	}
	return since, until, nil
}
