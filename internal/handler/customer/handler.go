package customer

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/detailing-api/internal/handler"
	"github.com/jwalitptl/detailing-api/internal/model"
	customerService "github.com/jwalitptl/detailing-api/internal/service/customer"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
	"github.com/jwalitptl/detailing-api/pkg/validator"
)

type Handler struct {
	service   customerService.CustomerServicer
	validator *validator.Validator
}

func NewHandler(service customerService.CustomerServicer, v *validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

// RegisterRoutes mounts /customers. Every method goes through one dispatcher.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.Any("/customers", h.Serve())
}

// Serve is the /customers dispatcher, also registered as a local API.
func (h *Handler) Serve() gin.HandlerFunc {
	return handler.Dispatch(handler.Methods{
		http.MethodGet:    h.GetCustomers,
		http.MethodPost:   h.CreateCustomer,
		http.MethodPut:    h.UpdateCustomer,
		http.MethodDelete: h.DeleteCustomer,
	})
}

var customerKinds = map[string]validator.Kind{
	"name":    validator.KindString,
	"email":   validator.KindString,
	"phone":   validator.KindString,
	"address": validator.KindString,
	"notes":   validator.KindString,
}

type customerRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email   *string `json:"email" validate:"omitempty,max=254,email"`
	Phone   *string `json:"phone" validate:"omitempty,min=1,max=30"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Notes   *string `json:"notes" validate:"omitempty,max=2000"`
}

func (r *customerRequest) trim() {
	for _, s := range []*string{r.Name, r.Email, r.Phone, r.Address, r.Notes} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

func (h *Handler) parse(c *gin.Context, body map[string]interface{}) (*customerRequest, bool) {
	if !handler.Validate(c, validator.Types(body, customerKinds)) {
		return nil, false
	}
	var req customerRequest
	if err := validator.Decode(body, &req); err != nil {
		handler.Validate(c, []string{err.Error()})
		return nil, false
	}
	req.trim()
	if !handler.Validate(c, h.validator.Struct(&req)) {
		return nil, false
	}
	return &req, true
}

// GetCustomers lists customers, or narrows to one by ?id= or ?email=, or
// filters by ?search=.
func (h *Handler) GetCustomers(c *gin.Context) {
	ctx := c.Request.Context()

	id, present, ok := handler.IDFromQuery(c)
	if !ok {
		return
	}
	if present {
		customer, err := h.service.GetCustomer(ctx, id)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, customer)
		return
	}

	if email, ok := c.GetQuery("email"); ok {
		customer, err := h.service.GetCustomerByEmail(ctx, email)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, customer)
		return
	}

	var (
		customers []*model.Customer
		err       error
	)
	if term, ok := c.GetQuery("search"); ok {
		customers, err = h.service.SearchCustomers(ctx, term)
	} else {
		customers, err = h.service.ListCustomers(ctx)
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithList(c, customers, len(customers))
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	body, ok := handler.ReadObject(c)
	if !ok {
		return
	}
	if !handler.Validate(c, validator.Required(body, "name", "email", "phone")) {
		return
	}
	req, ok := h.parse(c, body)
	if !ok {
		return
	}

	created, err := h.service.CreateCustomer(c.Request.Context(), &model.Customer{
		Name:    *req.Name,
		Email:   *req.Email,
		Phone:   *req.Phone,
		Address: req.Address,
		Notes:   req.Notes,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Customer created successfully", created)
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	body, ok := handler.ReadObject(c)
	if !ok {
		return
	}
	id, ok := handler.IDFromBody(c, body)
	if !ok {
		return
	}
	req, ok := h.parse(c, body)
	if !ok {
		return
	}

	updated, err := h.service.UpdateCustomer(c.Request.Context(), id, model.CustomerPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Notes:   req.Notes,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Customer updated successfully", updated)
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	body, ok := handler.OptionalObject(c)
	if !ok {
		return
	}
	id, ok := handler.IDFromBody(c, body)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteCustomer(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Customer deleted successfully", deleted)
}
