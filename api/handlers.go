/*
handlers.go - HTTP API handlers for the library desk

PURPOSE:
  Exposes the library over a local JSON API. Handles HTTP request/response
  and JSON serialization, and delegates every rule to library.Library.

ENDPOINTS:
  Books:
    GET    /api/books                  List active books (?title= ?author= ?isbn=)
    POST   /api/books                  Add book                          [admin]
    GET    /api/books/{id}             Get book
    PATCH  /api/books/{id}             Partial update                    [admin]
    DELETE /api/books/{id}             Deactivate                        [admin]

  Members:
    GET    /api/members                List active members (?name= ?email=) [admin]
    POST   /api/members                Register member                   [admin]
    GET    /api/members/{id}           Get member                        [admin]
    PATCH  /api/members/{id}           Partial update                    [admin]
    DELETE /api/members/{id}           Deactivate                        [admin]
    GET    /api/members/{id}/loans     History, or ?open=true for held books

  Loans:
    GET    /api/loans                  Open loans with names and overdue days [admin]
    POST   /api/loans                  Issue                             [admin]
    POST   /api/loans/{id}/return      Return, records fine              [admin]

  Admin:
    GET    /api/stats                  Dashboard numbers                 [admin]
    PUT    /api/admin/password         Change admin password             [admin]

ARCHITECTURE:
  Handler holds the library, the authenticator and one mutex. The library
  is single-threaded, so every /api request runs under the mutex.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed ids or bodies
  - 401: Missing or wrong admin credentials
  - 404: Record missing or inactive, loan not open
  - 409: Lending rule (no copies, issue limit, outstanding loans)
  - 507: Capacity limit reached
  - 500: Persistence failure, anything unexpected

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/warp/libris/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	lib    *library.Library
	auth   *library.Authenticator
	logger *zap.Logger

	mu sync.Mutex
}

// NewHandler creates a new handler over a library and its authenticator.
func NewHandler(lib *library.Library, auth *library.Authenticator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{lib: lib, auth: auth, logger: logger.With(zap.String("component", "api"))}
}

// serialize runs one request at a time against the library.
func (h *Handler) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Locked runs fn while holding the request mutex. Background jobs use it
// to read the library safely.
func (h *Handler) Locked(fn func(lib *library.Library)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.lib)
}

// RequireAdmin checks HTTP Basic credentials against the credential store.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="libris"`)
			writeError(w, http.StatusUnauthorized, "Admin credentials required", nil)
			return
		}
		if err := h.auth.Verify(r.Context(), user, pass); err != nil {
			if errors.Is(err, library.ErrInvalidCredentials) {
				h.logger.Warn("admin login failed", zap.String("username", user))
				w.Header().Set("WWW-Authenticate", `Basic realm="libris"`)
				writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
				return
			}
			h.fail(w, "Failed to check credentials", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// BOOK HANDLERS
// =============================================================================

// ListBooks returns active books, optionally filtered by one query field.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("isbn") != "":
		book, err := h.lib.FindBookByISBN(q.Get("isbn"))
		if library.IsNotFound(err) {
			writeJSON(w, http.StatusOK, []BookDTO{})
			return
		}
		if err != nil {
			h.fail(w, "Failed to search books", err)
			return
		}
		writeJSON(w, http.StatusOK, []BookDTO{toBookDTO(book)})
	case q.Get("title") != "":
		writeJSON(w, http.StatusOK, toBookDTOs(h.lib.FindBooksByTitle(q.Get("title"))))
	case q.Get("author") != "":
		writeJSON(w, http.StatusOK, toBookDTOs(h.lib.FindBooksByAuthor(q.Get("author"))))
	default:
		writeJSON(w, http.StatusOK, toBookDTOs(h.lib.Books()))
	}
}

// GetBook returns a single active book.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	book, err := h.lib.Book(library.BookID(id))
	if err != nil {
		h.fail(w, "Book not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(book))
}

// CreateBook adds a book with every copy available.
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if !decode(w, r, &req) {
		return
	}
	book, err := h.lib.AddBook(r.Context(), req.fields())
	if err != nil {
		h.fail(w, "Failed to add book", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookDTO(book))
}

// UpdateBook applies a partial update.
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req UpdateBookRequest
	if !decode(w, r, &req) {
		return
	}
	book, err := h.lib.UpdateBook(r.Context(), library.BookID(id), req.update())
	if err != nil {
		h.fail(w, "Failed to update book", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(book))
}

// DeleteBook deactivates a book with no copies out.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.lib.DeactivateBook(r.Context(), library.BookID(id)); err != nil {
		h.fail(w, "Failed to delete book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns active members, optionally filtered.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("email") != "":
		m, err := h.lib.FindMemberByEmail(q.Get("email"))
		if library.IsNotFound(err) {
			writeJSON(w, http.StatusOK, []MemberDTO{})
			return
		}
		if err != nil {
			h.fail(w, "Failed to search members", err)
			return
		}
		writeJSON(w, http.StatusOK, []MemberDTO{toMemberDTO(m)})
	case q.Get("name") != "":
		writeJSON(w, http.StatusOK, toMemberDTOs(h.lib.FindMembersByName(q.Get("name"))))
	default:
		writeJSON(w, http.StatusOK, toMemberDTOs(h.lib.Members()))
	}
}

// GetMember returns a single active member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	m, err := h.lib.Member(library.MemberID(id))
	if err != nil {
		h.fail(w, "Member not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m))
}

// CreateMember registers a member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.lib.AddMember(r.Context(), req.fields())
	if err != nil {
		h.fail(w, "Failed to add member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

// UpdateMember applies a partial update.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req UpdateMemberRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.lib.UpdateMember(r.Context(), library.MemberID(id), req.update())
	if err != nil {
		h.fail(w, "Failed to update member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m))
}

// DeleteMember deactivates a member holding no books.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.lib.DeactivateMember(r.Context(), library.MemberID(id)); err != nil {
		h.fail(w, "Failed to delete member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MemberLoans is the member portal view: full history, or only the books
// currently held with ?open=true.
func (h *Handler) MemberLoans(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	member := library.MemberID(id)
	if _, err := h.lib.Member(member); err != nil {
		h.fail(w, "Member not found", err)
		return
	}
	open, _ := strconv.ParseBool(r.URL.Query().Get("open"))
	if open {
		writeJSON(w, http.StatusOK, toLoanViewDTOs(h.lib.MemberOpenLoans(member)))
		return
	}
	writeJSON(w, http.StatusOK, toLoanViewDTOs(h.lib.MemberHistory(member)))
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListOpenLoans returns every copy currently out.
func (h *Handler) ListOpenLoans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toLoanViewDTOs(h.lib.OpenLoans()))
}

// IssueLoan lends one copy of a book to a member.
func (h *Handler) IssueLoan(w http.ResponseWriter, r *http.Request) {
	var req IssueLoanRequest
	if !decode(w, r, &req) {
		return
	}
	loan, err := h.lib.IssueLoan(r.Context(), library.BookID(req.BookID), library.MemberID(req.MemberID))
	if err != nil {
		h.fail(w, "Failed to issue book", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(loan, h.lib.Now()))
}

// ReturnLoan closes an open loan and reports the fine.
func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	loan, err := h.lib.ReturnLoan(r.Context(), library.LoanID(id))
	if err != nil {
		h.fail(w, "Failed to return book", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(loan, h.lib.Now()))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetStats returns the dashboard numbers.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	s := h.lib.Stats()
	writeJSON(w, http.StatusOK, StatsDTO{
		ActiveBooks:   s.ActiveBooks,
		ActiveMembers: s.ActiveMembers,
		OpenLoans:     s.OpenLoans,
		Transactions:  s.Transactions,
		TotalFines:    s.TotalFines,
	})
}

// ChangePassword replaces the admin password. The caller already passed
// RequireAdmin; the old password is checked again as confirmation.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	user, _, _ := r.BasicAuth()
	if err := h.auth.ChangePassword(r.Context(), user, req.OldPassword, req.NewPassword); err != nil {
		h.fail(w, "Failed to change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps a library error to its status and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusInsufficientStorage {
		h.logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case library.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, library.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case library.IsRuleViolation(err):
		return http.StatusConflict
	case errors.Is(err, library.ErrCapacityExceeded):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func urlID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", nil)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}
