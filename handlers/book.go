package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"librotek/errs"
	"librotek/middleware"
	"librotek/models"
	"librotek/store"
)

type BookHandler struct {
	Store store.Store
}

func NewBookHandler(st store.Store) *BookHandler {
	return &BookHandler{Store: st}
}

// actorEmail identifies who performed an action for the audit log.
func actorEmail(r *http.Request) string {
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		return claims.Email
	}
	return "system"
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errs.E(errs.Validation, "books.create", "invalid payload"))
		return
	}
	if req.Title == "" || req.Author == "" {
		respondError(w, errs.E(errs.Validation, "books.create", "title and author are required"))
		return
	}

	book := &models.Book{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Category:      req.Category,
		Publisher:     req.Publisher,
		Description:   req.Description,
		PageCount:     req.PageCount,
		PublishedYear: req.PublishedYear,
		CoverURL:      req.CoverURL,
		ShelfLocation: req.ShelfLocation,
		Status:        models.BookAvailable,
		AddedBy:       actorEmail(r),
		CreatedAt:     time.Now(),
	}
	if err := h.Store.CreateBook(r.Context(), book); err != nil {
		respondError(w, err)
		return
	}
	h.appendLog(r, book.ID, models.LogCreated)

	respondJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BookFilter{
		Search:         q.Get("search"),
		IncludeDeleted: q.Get("include_deleted") == "true",
	}
	if s := q.Get("status"); s != "" {
		status := models.BookStatus(s)
		if !status.Valid() {
			respondError(w, errs.E(errs.Validation, "books.list", "unknown status filter"))
			return
		}
		filter.Status = status
	}

	books, err := h.Store.ListBooks(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, books)
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, err := h.Store.GetBookByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, book)
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	book, err := h.Store.GetBookByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if book.Status == models.BookDeleted {
		respondError(w, errs.E(errs.Conflict, "books.update", "book has been deleted"))
		return
	}

	var req models.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errs.E(errs.Validation, "books.update", "invalid payload"))
		return
	}
	if req.Title == "" || req.Author == "" {
		respondError(w, errs.E(errs.Validation, "books.update", "title and author are required"))
		return
	}

	book.Title = req.Title
	book.Author = req.Author
	book.ISBN = req.ISBN
	book.Category = req.Category
	book.Publisher = req.Publisher
	book.Description = req.Description
	book.PageCount = req.PageCount
	book.PublishedYear = req.PublishedYear
	book.CoverURL = req.CoverURL
	book.ShelfLocation = req.ShelfLocation

	if err := h.Store.UpdateBook(r.Context(), book); err != nil {
		respondError(w, err)
		return
	}
	h.appendLog(r, id, models.LogUpdated)

	respondJSON(w, http.StatusOK, book)
}

// Delete is a soft delete. The row survives so old borrow records keep a
// valid book reference.
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Store.SoftDeleteBook(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	h.appendLog(r, id, models.LogDeleted)

	respondJSON(w, http.StatusOK, map[string]string{"message": "book deleted"})
}

// SetStatus is the admin availability toggle between available and
// unavailable. Borrowed and deleted states belong to the lifecycle and
// cannot be forced from here.
func (h *BookHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Status models.BookStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, errs.E(errs.Validation, "books.set_status", "invalid payload"))
		return
	}
	if payload.Status != models.BookAvailable && payload.Status != models.BookUnavailable {
		respondError(w, errs.E(errs.Validation, "books.set_status", "status must be available or unavailable"))
		return
	}

	book, err := h.Store.GetBookByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if book.Status == models.BookBorrowed || book.Status == models.BookDeleted {
		respondError(w, errs.E(errs.Conflict, "books.set_status", "book status cannot be changed in its current state"))
		return
	}

	if err := h.Store.SetBookStatus(r.Context(), id, payload.Status); err != nil {
		respondError(w, err)
		return
	}
	h.appendLog(r, id, models.LogUpdated)

	respondJSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}

// QRPayload returns the string a client encodes into the QR label for a
// book. Generating a label is an audited action.
func (h *BookHandler) QRPayload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	book, err := h.Store.GetBookByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	h.appendLog(r, id, models.LogQRGenerated)

	respondJSON(w, http.StatusOK, map[string]string{
		"payload": fmt.Sprintf("librotek:book:%s", book.ID),
		"title":   book.Title,
	})
}

func (h *BookHandler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Store.ListBookLogs(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *BookHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, errs.E(errs.Validation, "books.rate", "invalid payload"))
		return
	}
	if payload.Score < 1 || payload.Score > 5 {
		respondError(w, errs.E(errs.Validation, "books.rate", "score must be between 1 and 5"))
		return
	}

	book, err := h.Store.GetBookByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if book.Status == models.BookDeleted {
		respondError(w, errs.E(errs.Conflict, "books.rate", "book has been deleted"))
		return
	}

	rating := &models.BookRating{
		BookID:    id,
		Score:     payload.Score,
		Actor:     actorEmail(r),
		CreatedAt: time.Now(),
	}
	if err := h.Store.AddBookRating(r.Context(), rating); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "rating recorded"})
}

func (h *BookHandler) Ratings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.Store.ListBookRatings(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ratings)
}

// History lists the borrow ledger entries for one book.
func (h *BookHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListBorrows(r.Context(), models.BorrowFilter{BookID: mux.Vars(r)["id"]})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *BookHandler) appendLog(r *http.Request, bookID, action string) {
	entry := &models.BookLog{
		BookID:    bookID,
		Action:    action,
		Actor:     actorEmail(r),
		CreatedAt: time.Now(),
	}
	if err := h.Store.AppendBookLog(r.Context(), entry); err != nil {
		log.Printf("books: audit log for %s (%s) failed: %v", bookID, action, err)
	}
}
