package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/flowride/flow/internal/errors"
	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/service"
	"github.com/flowride/flow/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type DriverHandler struct {
	driverService service.DriverService
	dispatcher    service.DispatchService
	validate      *validator.Validate
}

func NewDriverHandler(driverService service.DriverService, dispatcher service.DispatchService) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		dispatcher:    dispatcher,
		validate:      validator.New(),
	}
}

func (h *DriverHandler) RegisterRoutes(r chi.Router) {
	r.Post("/drivers", h.CreateDriver)
	r.Get("/drivers/{id}", h.GetDriver)
	r.Post("/drivers/{id}/online", h.GoOnline)
	r.Post("/drivers/{id}/offline", h.GoOffline)
	r.Post("/drivers/{id}/location", h.UpdateLocation)
	r.Post("/drivers/{id}/push-token", h.SetPushToken)
	r.Post("/drivers/{id}/respond", h.RespondOffer)
}

// POST /v1/drivers
func (h *DriverHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	driver, err := h.driverService.CreateDriver(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, driver)
}

// GET /v1/drivers/{id}
func (h *DriverHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	driver, err := h.driverService.GetDriver(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, driver)
}

// POST /v1/drivers/{id}/online
func (h *DriverHandler) GoOnline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	// The body is optional; an initial position makes the driver
	// matchable right away.
	var loc *models.Location
	var body models.Location
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		loc = &body
	}

	if err := h.driverService.GoOnline(r.Context(), id, loc); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "online"})
}

// POST /v1/drivers/{id}/offline
func (h *DriverHandler) GoOffline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	if err := h.driverService.GoOffline(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "offline"})
}

// POST /v1/drivers/{id}/location
func (h *DriverHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	var req models.UpdateDriverLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	if err := h.driverService.UpdateLocation(r.Context(), id, &req); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "updated"})
}

// POST /v1/drivers/{id}/push-token
func (h *DriverHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	if err := h.driverService.SetPushToken(r.Context(), id, req.Token); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "stored"})
}

// POST /v1/drivers/{id}/respond
func (h *DriverHandler) RespondOffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	var req models.RespondOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	recorded, err := h.dispatcher.RespondOffer(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	if !recorded {
		utils.Error(w, apperrors.OfferNotPending())
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "recorded"})
}
