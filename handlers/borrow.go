package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"librotek/errs"
	"librotek/middleware"
	"librotek/models"
	"librotek/service"
	"librotek/store"
	"librotek/utils"
)

// BorrowHandler wires the OTP gate and the borrow orchestrator to the
// HTTP surface. The store is still needed directly for borrower
// profile lookups and ledger listings.
type BorrowHandler struct {
	Store store.Store
	OTP   *service.OTPGate
	Orch  *service.Orchestrator
	Hub   *utils.Hub
}

func NewBorrowHandler(st store.Store, otp *service.OTPGate, orch *service.Orchestrator, hub *utils.Hub) *BorrowHandler {
	return &BorrowHandler{Store: st, OTP: otp, Orch: orch, Hub: hub}
}

// RequestOTP issues a code for the authenticated user. The email comes
// from the token, never the payload, so a code is only ever sent to the
// account owner.
func (h *BorrowHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.OTPRequest
	if r.Body != nil {
		// Phone is optional; an empty body means email-only delivery.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	phone := req.Phone
	if phone == "" {
		if user, err := h.Store.GetUserByID(r.Context(), claims.UserID); err == nil {
			phone = user.Phone
		}
	}

	if _, err := h.OTP.Issue(r.Context(), claims.Email, phone); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

// Borrow checks a book out after redeeming the supplied OTP code. The
// borrower snapshot comes from the stored profile of the authenticated
// user at this moment and never changes afterwards.
func (h *BorrowHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	const op = "borrows.create"
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errs.E(errs.Validation, op, "invalid payload"))
		return
	}
	if req.BookID == "" || req.Code == "" {
		respondError(w, errs.E(errs.Validation, op, "book_id and code are required"))
		return
	}

	valid, err := h.OTP.Verify(r.Context(), claims.Email, req.Code)
	if err != nil {
		respondError(w, err)
		return
	}
	if !valid {
		respondError(w, errs.E(errs.Validation, op, "invalid or expired OTP code"))
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	rec, err := h.Orch.RequestBorrow(r.Context(), req.BookID, models.BorrowerInfo{
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// Return closes a borrow and releases the book. Borrowers may only
// return their own records; admins may return any.
func (h *BorrowHandler) Return(w http.ResponseWriter, r *http.Request) {
	const op = "borrows.return"
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	rec, err := h.Store.GetBorrowByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if claims.Role != "admin" && rec.BorrowerEmail != claims.Email {
		respondError(w, errs.E(errs.NotFound, op, "borrow record not found"))
		return
	}

	closed, err := h.Orch.CompleteReturn(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.Hub != nil {
		if user, uerr := h.Store.GetUserByEmail(r.Context(), closed.BorrowerEmail); uerr == nil {
			h.Hub.Notify(user.ID, "Your book return has been recorded. Thank you!")
		}
	}
	respondJSON(w, http.StatusOK, closed)
}

// ListMine shows the authenticated borrower their own ledger entries,
// active and returned.
func (h *BorrowHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	filter := models.BorrowFilter{Email: claims.Email}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = models.BorrowStatus(s)
	}
	records, err := h.Store.ListBorrows(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// List is the admin view over the full ledger with optional filters.
func (h *BorrowHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BorrowFilter{
		BookID: q.Get("book_id"),
		Email:  q.Get("email"),
		Status: models.BorrowStatus(q.Get("status")),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, errs.E(errs.Validation, "borrows.list", "from must be YYYY-MM-DD"))
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, errs.E(errs.Validation, "borrows.list", "to must be YYYY-MM-DD"))
			return
		}
		filter.To = t
	}

	records, err := h.Store.ListBorrows(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *BorrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rec, err := h.Store.GetBorrowByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	if claims.Role != "admin" && rec.BorrowerEmail != claims.Email {
		respondError(w, errs.E(errs.NotFound, "borrows.get", "borrow record not found"))
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// ListActive lists the currently open checkouts.
func (h *BorrowHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListActiveBorrows(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// ListOverdue lists active checkouts whose due date has passed.
func (h *BorrowHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	records, err := h.Orch.ListOverdue(r.Context(), time.Now())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}
