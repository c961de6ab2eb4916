package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

const exportFilename = "quotes.json"

// QuoteHandler handles quote, category and filter endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		service: service,
	}
}

// ListQuotes handles GET /api/v1/quotes.
// Returns the quotes visible under the category query parameter, or under
// the persisted filter when it is absent, one page at a time.
//
// @Summary List visible quotes
// @Tags quotes
// @Produce json
// @Param category query string false "Category, or 'all'"
// @Param cursor query string false "Cursor from a previous page"
// @Param limit query int false "Page size (1-100)"
// @Success 200 {object} dto.PaginatedResponse[dto.QuoteResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var req dto.ListQuotesRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	visible := h.service.VisibleQuotes(c.Request.Context(), req.Category)

	page, err := dto.Paginate(dto.NewQuoteResponses(visible), req.PaginationRequest)
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, page)
}

// AddQuote handles POST /api/v1/quotes.
//
// @Summary Add a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote body dto.AddQuoteRequest true "Quote"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.AddQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	quote, err := h.service.AddQuote(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuoteResponse(quote))
}

// RandomQuote handles GET /api/v1/quotes/random.
//
// @Summary Get a random visible quote
// @Tags quotes
// @Produce json
// @Param category query string false "Category, or 'all'"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/random [get]
func (h *QuoteHandler) RandomQuote(c *gin.Context) {
	var req dto.RandomQuoteRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	quote, err := h.service.RandomQuote(c.Request.Context(), req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// ExportQuotes handles GET /api/v1/quotes/export.
// The body is the full list as a JSON array, importable as is.
func (h *QuoteHandler) ExportQuotes(c *gin.Context) {
	quotes := h.service.Export(c.Request.Context())

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename))
	c.JSON(http.StatusOK, dto.NewQuoteResponses(quotes))
}

// ImportQuotes handles POST /api/v1/quotes/import.
// One invalid record rejects the whole import.
//
// @Summary Import quotes
// @Tags quotes
// @Accept json
// @Produce json
// @Param quotes body dto.ImportQuotesRequest true "Quotes"
// @Success 200 {object} app.ImportResult
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes/import [post]
func (h *QuoteHandler) ImportQuotes(c *gin.Context) {
	var req dto.ImportQuotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, fmt.Errorf("%w: %w", dto.ErrBinding, err))
		return
	}

	fieldErrors := make(map[string]string)
	quotes := make([]domain.Quote, 0, len(req))

	for i, record := range req {
		if err := dto.Validate(record); err != nil {
			for field, msg := range dto.ValidationErrors(err) {
				fieldErrors[fmt.Sprintf("[%d].%s", i, field)] = msg
			}

			continue
		}

		quotes = append(quotes, record.ToDomain())
	}

	if len(fieldErrors) > 0 {
		dto.RespondWithValidationErrors(c, fieldErrors)
		return
	}

	result, err := h.service.Import(c.Request.Context(), quotes)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Categories handles GET /api/v1/categories.
func (h *QuoteHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CategoriesResponse{
		Categories: h.service.Categories(c.Request.Context()),
	})
}

// GetFilter handles GET /api/v1/filter.
func (h *QuoteHandler) GetFilter(c *gin.Context) {
	c.JSON(http.StatusOK, dto.FilterResponse{
		Category: h.service.Filter(c.Request.Context()),
	})
}

// SetFilter handles PUT /api/v1/filter.
//
// @Summary Persist the category filter
// @Tags filter
// @Accept json
// @Produce json
// @Param filter body dto.FilterRequest true "Filter"
// @Success 200 {object} dto.FilterResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/filter [put]
func (h *QuoteHandler) SetFilter(c *gin.Context) {
	var req dto.FilterRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	category, err := h.service.SetFilter(c.Request.Context(), req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FilterResponse{Category: category})
}

// RegisterQuoteRoutes registers quote, category and filter routes.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.POST("", h.AddQuote)
	quotes.GET("/random", h.RandomQuote)
	quotes.GET("/export", h.ExportQuotes)
	quotes.POST("/import", h.ImportQuotes)

	rg.GET("/categories", h.Categories)
	rg.GET("/filter", h.GetFilter)
	rg.PUT("/filter", h.SetFilter)
}

// respondBindError answers a failed BindAndValidate: field details for
// validation failures, a plain bad request for malformed input.
func respondBindError(c *gin.Context, err error) {
	if dto.IsValidationError(err) {
		dto.RespondWithValidationErrors(c, dto.ValidationErrors(err))
		return
	}

	msg := "malformed request"
	if errors.Is(err, dto.ErrBinding) {
		msg = "malformed request body or query"
	}

	dto.RespondWithCode(c, dto.ErrorCodeBadRequest, msg)
}
