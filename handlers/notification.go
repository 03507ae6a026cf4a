package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"librotek/errs"
	"librotek/middleware"
	"librotek/store"
	"librotek/utils"
)

type NotificationHandler struct {
	Store store.Store
	Hub   *utils.Hub
}

func NewNotificationHandler(st store.Store, hub *utils.Hub) *NotificationHandler {
	return &NotificationHandler{Store: st, Hub: hub}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	items, err := h.Store.ListNotifications(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, errs.E(errs.Validation, "notifications.read", "invalid notification id"))
		return
	}
	if err := h.Store.MarkNotificationRead(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "notification marked as read"})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, errs.E(errs.Validation, "notifications.delete", "invalid notification id"))
		return
	}
	if err := h.Store.DeleteNotification(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}

// Send is the admin broadcast to a single user: stored in-app and
// pushed live when the user is connected.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, errs.E(errs.Validation, "notifications.send", "invalid payload"))
		return
	}
	if payload.UserID == "" || payload.Message == "" {
		respondError(w, errs.E(errs.Validation, "notifications.send", "user_id and message are required"))
		return
	}
	if _, err := h.Store.GetUserByID(r.Context(), payload.UserID); err != nil {
		respondError(w, err)
		return
	}
	if err := h.Store.CreateNotification(r.Context(), payload.UserID, payload.Message); err != nil {
		respondError(w, err)
		return
	}
	if h.Hub != nil {
		h.Hub.Notify(payload.UserID, payload.Message)
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "notification sent"})
}

// ServeWS upgrades the connection for live notification delivery.
func (h *NotificationHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.Hub.ServeWS(w, r, claims.UserID); err != nil {
		respondError(w, errs.Wrap(errs.Dependency, "notifications.ws", err))
	}
}
