package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/service"
	"kasirinaja/backoffice/internal/session"
	"kasirinaja/backoffice/internal/store"
)

const (
	msgAlreadyClockedIn = "Already clocked in"
	msgClockedIn        = "Clocked in"
	msgShiftClosed      = "Shift closed"
	msgShiftNotFound    = "Shift not found"
	msgSuspended        = "You have a suspended shift. Ask a manager to clear it before clocking in."
)

type loginPage struct {
	Username string
}

type homePage struct {
	Shift      *domain.Shift
	CanClockIn bool
}

type clockOutPage struct {
	View       domain.ClockOutView
	RedirectTo string
}

func (a *API) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	rc := requestContextFrom(r.Context())
	if rc.Actor != nil {
		a.redirect(w, r, rc, "/")
		return
	}
	a.render(w, r, rc, http.StatusOK, "login", "Sign in", loginPage{})
}

func (a *API) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	rc := requestContextFrom(r.Context())

	var form loginForm
	if err := decodeForm(r, &form); err != nil {
		a.redirectWithFlash(w, r, rc, "/login", session.FlashError, "Username and password are required")
		return
	}

	resp, err := a.auth.Login(r.Context(), domain.LoginRequest{Username: form.Username, Password: form.Password})
	if err != nil {
		a.log.Warn(a.log.WithField(r.Context(), "username", form.Username), "auth.login_failed", err)
		a.redirectWithFlash(w, r, rc, "/login", session.FlashError, "Invalid username or password")
		return
	}

	a.setCookie(w, tokenCookie, resp.AccessToken, int(a.auth.TokenTTL().Seconds()))
	target := safeRedirect(rc.Session.Pull(session.KeyIntendedURL), "/")
	a.redirectWithFlash(w, r, rc, target, session.FlashSuccess, "Signed in")
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	rc := requestContextFrom(r.Context())
	if err := a.sessions.Destroy(r.Context(), rc.Session.ID); err != nil {
		a.log.Warn(r.Context(), "session.destroy_failed", err)
	}
	a.setCookie(w, tokenCookie, "", -1)
	a.setCookie(w, sessionCookie, "", -1)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (a *API) handleHome(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	page := homePage{}

	shift, err := a.service.CurrentShift(r.Context())
	switch {
	case err == nil:
		page.Shift = &shift
	case !errors.Is(err, store.ErrNotFound):
		a.renderError(w, r, rc, err)
		return
	}

	page.CanClockIn, err = a.service.CanClockIn(r.Context())
	if err != nil {
		a.renderError(w, r, rc, err)
		return
	}
	a.render(w, r, rc, http.StatusOK, "home", "Home", page)
}

func (a *API) handleShiftIndex(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	pageNumber := parsePositiveLimit(r.URL.Query().Get("page"), 1, 0)
	shifts, err := a.service.ListShifts(r.Context(), pageNumber)
	if err != nil {
		a.renderError(w, r, rc, err)
		return
	}
	a.render(w, r, rc, http.StatusOK, "shifts_index", "Shifts", shifts)
}

func (a *API) handleShiftExport(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	export, err := a.service.ExportShifts(r.Context(), format)
	if err != nil {
		a.renderError(w, r, rc, err)
		return
	}

	a.commitSession(r, rc)
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Body)
}

func (a *API) handleClockInPage(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	view, err := a.service.ClockInView(r.Context())
	if errors.Is(err, store.ErrShiftAlreadyOpen) {
		a.redirectWithFlash(w, r, rc, "/", session.FlashError, msgAlreadyClockedIn)
		return
	}
	if err != nil {
		a.renderError(w, r, rc, err)
		return
	}

	intended := safeRedirect(r.URL.Query().Get("redirect"), "")
	if intended == "" {
		intended = rc.URLs.Previous("")
	}
	if intended != "" {
		rc.Session.Put(session.KeyIntendedURL, intended)
	}
	a.render(w, r, rc, http.StatusOK, "clock_in", "Clock in", view)
}

func (a *API) handleClockIn(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	var form clockInForm
	if err := decodeForm(r, &form); err != nil {
		a.redirectWithFlash(w, r, rc, rc.URLs.Previous("/shifts/clock-in"), session.FlashError, flashMessage(err))
		return
	}

	_, err := a.service.OpenShift(r.Context(), amountOrZero(form.OpeningBalance))
	switch {
	case err == nil:
	case errors.Is(err, store.ErrShiftSuspended):
		a.redirectWithFlash(w, r, rc, "/shifts/clock-in", session.FlashError, msgSuspended)
		return
	case errors.Is(err, store.ErrShiftAlreadyOpen):
		a.redirectWithFlash(w, r, rc, "/", session.FlashError, msgAlreadyClockedIn)
		return
	default:
		a.flashFailure(w, r, rc, rc.URLs.Previous("/shifts/clock-in"), err)
		return
	}

	target := safeRedirect(rc.Session.Pull(session.KeyIntendedURL), "/")
	a.redirectWithFlash(w, r, rc, target, session.FlashSuccess, msgClockedIn)
}

func (a *API) handleClockOutPage(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	view, err := a.service.ClockOutView(r.Context())
	if errors.Is(err, service.ErrNotClockedIn) {
		a.redirectWithFlash(w, r, rc, rc.URLs.Previous("/"), session.FlashError, "You're not clocked in")
		return
	}
	if err != nil {
		a.renderError(w, r, rc, err)
		return
	}
	redirectTo := safeRedirect(r.URL.Query().Get("redirect-to"), "")
	if redirectTo == "" {
		redirectTo = rc.URLs.Previous("/")
	}
	a.render(w, r, rc, http.StatusOK, "clock_out", "Clock out", clockOutPage{
		View:       view,
		RedirectTo: redirectTo,
	})
}

func (a *API) handleClockOut(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	back := rc.URLs.Previous("/")

	var form clockOutForm
	if err := decodeForm(r, &form); err != nil {
		a.redirectWithFlash(w, r, rc, back, session.FlashError, flashMessage(err))
		return
	}

	_, err := a.service.CloseShift(r.Context(), domain.ShiftCloseRequest{
		ShiftID:        chi.URLParam(r, "shiftID"),
		ClosingBalance: amountOrZero(form.ClosingBalance),
		Remark:         form.Remark,
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		a.redirectWithFlash(w, r, rc, back, session.FlashError, msgShiftNotFound)
		return
	default:
		a.flashFailure(w, r, rc, back, err)
		return
	}

	a.redirectWithFlash(w, r, rc, safeRedirect(form.RedirectTo, "/"), session.FlashSuccess, msgShiftClosed)
}

func (a *API) handleSuspendShift(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	if _, err := a.service.SuspendShift(r.Context(), chi.URLParam(r, "shiftID")); err != nil {
		a.flashFailure(w, r, rc, "/shifts", err)
		return
	}
	a.redirectWithFlash(w, r, rc, "/shifts", session.FlashSuccess, "Shift suspended")
}

func (a *API) handleClearSuspension(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	var form clearSuspensionForm
	if err := decodeForm(r, &form); err != nil {
		a.redirectWithFlash(w, r, rc, "/shifts", session.FlashError, flashMessage(err))
		return
	}
	if _, err := a.service.ClearSuspension(r.Context(), chi.URLParam(r, "shiftID"), form.ManagerPIN); err != nil {
		a.flashFailure(w, r, rc, "/shifts", err)
		return
	}
	a.redirectWithFlash(w, r, rc, "/shifts", session.FlashSuccess, "Suspension cleared")
}

func (a *API) handleProductShow(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	view, err := a.service.ProductStock(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		a.renderError(w, r, rc, err)
		return
	}
	a.render(w, r, rc, http.StatusOK, "product_show", view.Product.Name, view)
}

func (a *API) handleInventoryMovement(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	productID := chi.URLParam(r, "productID")
	back := "/products/" + productID

	var (
		err     error
		success string
	)
	switch chi.URLParam(r, "action") {
	case domain.MovementAdd:
		var form addInventoryForm
		if err = decodeForm(r, &form); err == nil {
			_, err = a.service.AddInventory(r.Context(), domain.InventoryAddRequest{
				ProductID: productID,
				BranchID:  form.BranchID,
				Quantity:  form.Quantity,
				ExpiredAt: form.ExpiredAt,
				Priority:  form.Priority,
				Remark:    form.Remark,
			})
		}
		success = "Inventory added"
	case domain.MovementMove:
		var form moveInventoryForm
		if err = decodeForm(r, &form); err == nil {
			_, err = a.service.MoveInventory(r.Context(), domain.InventoryMoveRequest{
				ProductID:   productID,
				InventoryID: form.InventoryID,
				ToBranchID:  form.ToBranchID,
				Quantity:    form.Quantity,
				Remark:      form.Remark,
			})
		}
		success = "Inventory moved"
	case domain.MovementRemove:
		var form removeInventoryForm
		if err = decodeForm(r, &form); err == nil {
			_, err = a.service.RemoveInventory(r.Context(), domain.InventoryRemoveRequest{
				ProductID:   productID,
				BranchID:    form.BranchID,
				InventoryID: form.InventoryID,
				Quantity:    form.Quantity,
				Remark:      form.Remark,
			})
		}
		success = "Inventory removed"
	default:
		a.renderError(w, r, rc, store.ErrNotFound)
		return
	}

	if err != nil {
		a.flashFailure(w, r, rc, back, err)
		return
	}
	a.redirectWithFlash(w, r, rc, back, session.FlashSuccess, success)
}

// flashFailure reports err as an error flash on target. Unexpected errors are
// logged and shown generically.
func (a *API) flashFailure(w http.ResponseWriter, r *http.Request, rc *requestContext, target string, err error) {
	if statusForError(err) >= 500 {
		a.log.Error(r.Context(), "request.failed", err)
	}
	a.redirectWithFlash(w, r, rc, target, session.FlashError, flashMessage(err))
}

func flashMessage(err error) string {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		return "Please check the form: " + verr.Error()
	case errors.Is(err, store.ErrInsufficientStock):
		return "Not enough stock"
	case errors.Is(err, store.ErrShiftSuspended):
		return msgSuspended
	case errors.Is(err, store.ErrShiftClosed):
		return "Shift already closed"
	case errors.Is(err, store.ErrNotFound):
		return "Not found"
	case errors.Is(err, service.ErrAdminRequired):
		return "You are not allowed to do that"
	case errors.Is(err, service.ErrInvalidManagerPIN):
		return "Invalid manager PIN"
	case errors.Is(err, store.ErrInvalidInput):
		if detail := strings.TrimPrefix(err.Error(), store.ErrInvalidInput.Error()+": "); detail != err.Error() {
			return "Invalid input: " + detail
		}
		return "Invalid input"
	}
	return "Something went wrong"
}
