package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/flowride/flow/internal/errors"
	"github.com/flowride/flow/internal/models"
	"github.com/flowride/flow/internal/repository"
	"github.com/flowride/flow/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// RiderHandler covers rider CRUD. It talks straight to the repository;
// there is no rider business logic worth a service layer yet.
type RiderHandler struct {
	riderRepo repository.RiderRepository
	validate  *validator.Validate
}

func NewRiderHandler(riderRepo repository.RiderRepository) *RiderHandler {
	return &RiderHandler{
		riderRepo: riderRepo,
		validate:  validator.New(),
	}
}

func (h *RiderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/riders", h.CreateRider)
	r.Get("/riders/{id}", h.GetRider)
	r.Post("/riders/{id}/push-token", h.SetPushToken)
}

// POST /v1/riders
func (h *RiderHandler) CreateRider(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRiderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	rider := &models.Rider{
		Name:  req.Name,
		Phone: req.Phone,
	}
	if req.Email != "" {
		rider.Email = &req.Email
	}

	if err := h.riderRepo.Create(r.Context(), rider); err != nil {
		utils.InternalError(w, "failed to create rider")
		return
	}

	utils.Created(w, rider.ToResponse())
}

// GET /v1/riders/{id}
func (h *RiderHandler) GetRider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "rider id is required")
		return
	}

	rider, err := h.riderRepo.GetByID(r.Context(), id)
	if err != nil {
		utils.InternalError(w, "failed to load rider")
		return
	}
	if rider == nil {
		utils.Error(w, apperrors.NotFound("rider"))
		return
	}

	utils.Success(w, http.StatusOK, rider.ToResponse())
}

// POST /v1/riders/{id}/push-token
func (h *RiderHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "rider id is required")
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

	if err := h.riderRepo.SetPushToken(r.Context(), id, req.Token); err != nil {
		utils.InternalError(w, "failed to store push token")
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "stored"})
}
