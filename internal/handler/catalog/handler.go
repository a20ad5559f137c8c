package catalog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/detailing-api/internal/handler"
	"github.com/jwalitptl/detailing-api/internal/model"
	catalogService "github.com/jwalitptl/detailing-api/internal/service/catalog"
	"github.com/jwalitptl/detailing-api/pkg/httputil"
	"github.com/jwalitptl/detailing-api/pkg/validator"
)

type Handler struct {
	service   catalogService.CatalogServicer
	validator *validator.Validator
}

func NewHandler(service catalogService.CatalogServicer, v *validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

// RegisterRoutes mounts /services. Every method goes through one dispatcher.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.Any("/services", h.Serve())
}

// Serve is the /services dispatcher, also registered as a local API.
func (h *Handler) Serve() gin.HandlerFunc {
	return handler.Dispatch(handler.Methods{
		http.MethodGet:    h.GetServices,
		http.MethodPost:   h.CreateService,
		http.MethodPut:    h.UpdateService,
		http.MethodDelete: h.DeleteService,
	})
}

var serviceKinds = map[string]validator.Kind{
	"name":        validator.KindString,
	"description": validator.KindString,
	"price":       validator.KindNumber,
}

type serviceRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,min=1,max=500"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0,lt=10000"`
}

func (r *serviceRequest) trim() {
	for _, s := range []*string{r.Name, r.Description} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

// parse runs the type and range checks shared by create and update.
func (h *Handler) parse(c *gin.Context, body map[string]interface{}) (*serviceRequest, bool) {
	if !handler.Validate(c, validator.Types(body, serviceKinds)) {
		return nil, false
	}
	var req serviceRequest
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

func (h *Handler) GetServices(c *gin.Context) {
	id, present, ok := handler.IDFromQuery(c)
	if !ok {
		return
	}
	if present {
		service, err := h.service.GetService(c.Request.Context(), id)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, service)
		return
	}

	services, err := h.service.ListServices(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithList(c, services, len(services))
}

func (h *Handler) CreateService(c *gin.Context) {
	body, ok := handler.ReadObject(c)
	if !ok {
		return
	}
	if !handler.Validate(c, validator.Required(body, "name", "description", "price")) {
		return
	}
	req, ok := h.parse(c, body)
	if !ok {
		return
	}

	created, err := h.service.CreateService(c.Request.Context(), &model.Service{
		Name:        *req.Name,
		Description: *req.Description,
		Price:       *req.Price,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Service created successfully", created)
}

func (h *Handler) UpdateService(c *gin.Context) {
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

	updated, err := h.service.UpdateService(c.Request.Context(), id, model.ServicePatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Service updated successfully", updated)
}

func (h *Handler) DeleteService(c *gin.Context) {
	body, ok := handler.OptionalObject(c)
	if !ok {
		return
	}
	id, ok := handler.IDFromBody(c, body)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteService(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Service deleted successfully", deleted)
}
