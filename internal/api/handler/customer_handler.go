package handler

import (
	"customer-service/internal/api/handler/dto"
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type CustomerHandler struct {
	service customer.CustomerService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		logger:  l.With("component", "CustomerHandler"),
	}
}

func (h *CustomerHandler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(slog.String("request_id", middleware.GetReqID(r.Context())))
}

func (h *CustomerHandler) logServiceError(r *http.Request, logger *slog.Logger, msg string, err error) {
	level := slog.LevelWarn
	if !errors.Is(err, apperrors.ErrNotFound) {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, msg, slog.Any("error", err))
}

// readCustomerRequest checks the content type before the body so a wrong
// media type is reported as 415 even when the body is also invalid.
func readCustomerRequest(r *http.Request) (*customer.Customer, error) {
	if err := requireJSON(r); err != nil {
		return nil, err
	}
	var req dto.CustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req.ToDomain(), nil
}

// CreateCustomer handles POST /customers
// @Summary Create a new customer
// @Description Creates a customer together with its addresses. Any id in the body is ignored.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CustomerRequest true "Customer creation request"
// @Success 201 {object} dto.CustomerResponse "Customer successfully created"
// @Header 201 {string} Location "/customers/{customerID}"
// @Failure 400 {object} dto.ErrorResponse "Missing required field or malformed body"
// @Failure 415 {object} dto.ErrorResponse "Content-Type is not application/json"
// @Failure 500 {object} dto.ErrorResponse "Internal server error during creation"
// @Router /customers [post]
// @Security BearerAuth
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	logger.DebugContext(r.Context(), "Received create customer request")

	cust, err := readCustomerRequest(r)
	if err != nil {
		logger.WarnContext(r.Context(), "Rejected create customer request", slog.Any("error", err))
		respondError(w, err)
		return
	}

	created, err := h.service.CreateCustomer(r.Context(), cust)
	if err != nil {
		h.logServiceError(r, logger, "Service failed to create customer", err)
		respondError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "Customer created successfully", slog.Int64("customerID", created.CustomerID))
	w.Header().Set("Location", fmt.Sprintf("/customers/%d", created.CustomerID))
	respondJSON(w, http.StatusCreated, dto.NewCustomerResponse(created))
}

// GetCustomer handles GET /customers/{customerID}
// @Summary Retrieve customer details
// @Description Retrieves a customer and its addresses by ID.
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 200 {object} dto.CustomerResponse "Customer details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID format"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [get]
// @Security BearerAuth
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		logger.WarnContext(r.Context(), "Failed to get customer ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	found, err := h.service.GetCustomer(r.Context(), customerID)
	if err != nil {
		h.logServiceError(r, logger, "Service failed to get customer", err)
		respondError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "Customer retrieved successfully", slog.Int64("customerID", customerID))
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(found))
}

// ListCustomers handles GET /customers
// @Summary List customers
// @Description Lists every customer. The active flag accepts yes, y, true, t or 1 (case-insensitive) as true and anything else as false.
// @Tags Customers
// @Produce json
// @Param active query string false "Filter by active status" Example(true)
// @Param first_name query string false "Exact first name; used together with last_name"
// @Param last_name query string false "Exact last name; used together with first_name"
// @Success 200 {array} dto.CustomerResponse "List of customers"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [get]
// @Security BearerAuth
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	query := r.URL.Query()

	var filter customer.ListFilter
	if query.Has("active") {
		active := dto.ParseBool(query.Get("active"))
		filter.Active = &active
	}
	filter.FirstName = query.Get("first_name")
	filter.LastName = query.Get("last_name")

	customers, err := h.service.ListCustomers(r.Context(), filter)
	if err != nil {
		h.logServiceError(r, logger, "Service failed to list customers", err)
		respondError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "Customers listed successfully", slog.Int("count", len(customers)))
	respondJSON(w, http.StatusOK, dto.NewCustomerListResponse(customers))
}

// UpdateCustomer handles PUT /customers/{customerID}
// @Summary Replace a customer
// @Description Replaces the customer's fields and address list. The path id always wins over any id in the body.
// @Tags Customers
// @Accept json
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Param request body dto.CustomerRequest true "Customer replacement"
// @Success 200 {object} dto.CustomerResponse "Customer updated"
// @Failure 400 {object} dto.ErrorResponse "Missing required field or malformed body"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 415 {object} dto.ErrorResponse "Content-Type is not application/json"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [put]
// @Security BearerAuth
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		logger.WarnContext(r.Context(), "Failed to get customer ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	if _, err := h.service.GetCustomer(r.Context(), customerID); err != nil {
		h.logServiceError(r, logger, "Service failed to get customer for update", err)
		respondError(w, err)
		return
	}

	cust, err := readCustomerRequest(r)
	if err != nil {
		logger.WarnContext(r.Context(), "Rejected update customer request", slog.Any("error", err))
		respondError(w, err)
		return
	}

	updated, err := h.service.UpdateCustomer(r.Context(), customerID, cust)
	if err != nil {
		h.logServiceError(r, logger, "Service failed to update customer", err)
		respondError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "Customer updated successfully", slog.Int64("customerID", customerID))
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(updated))
}

// DeleteCustomer handles DELETE /customers/{customerID}
// @Summary Delete a customer
// @Description Deletes a customer and its addresses. Deleting a missing customer also succeeds.
// @Tags Customers
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 204 "Customer deleted"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID format"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [delete]
// @Security BearerAuth
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		logger.WarnContext(r.Context(), "Failed to get customer ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), customerID); err != nil {
		h.logServiceError(r, logger, "Service failed to delete customer", err)
		respondError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "Customer delete handled", slog.Int64("customerID", customerID))
	w.WriteHeader(http.StatusNoContent)
}

// ActivateCustomer handles PUT /customers/{customerID}/activate
// @Summary Activate a customer
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 200 {object} dto.CustomerResponse "Customer activated"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID format"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/activate [put]
// @Security BearerAuth
func (h *CustomerHandler) ActivateCustomer(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivateCustomer handles PUT /customers/{customerID}/deactivate
// @Summary Deactivate a customer
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 200 {object} dto.CustomerResponse "Customer deactivated"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID format"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/deactivate [put]
// @Security BearerAuth
func (h *CustomerHandler) DeactivateCustomer(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *CustomerHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	logger := h.requestLogger(r).With(slog.Bool("active", active))

	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		logger.WarnContext(r.Context(), "Failed to get customer ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	var cust *customer.Customer
	if active {
		cust, err = h.service.ActivateCustomer(r.Context(), customerID)
	} else {
		cust, err = h.service.DeactivateCustomer(r.Context(), customerID)
	}
	if err != nil {
		h.logServiceError(r, logger, "Service failed to change customer active status", err)
		respondError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "Customer active status changed", slog.Int64("customerID", customerID))
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(cust))
}
