package http

import (
	"errors"
	"net/http"
	"strings"

	"kcal/internal/core"
	"kcal/internal/estimate"
	"kcal/internal/ledger"
	applog "kcal/internal/log"
	"kcal/internal/services"
)

type dayResponse struct {
	services.DayView
	Rounded core.Nutrients `json:"rounded_totals"`
}

type manualRequest struct {
	Category string `json:"category"`
	estimate.ManualInput
}

type textRequest struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

type labelRequest struct {
	Category string             `json:"category"`
	Scan     estimate.LabelScan `json:"scan"`
	Grams    Grams              `json:"grams"`
	// Save also stores the scan in the saved-products catalog.
	Save bool `json:"save,omitempty"`
}

type labelResponse struct {
	services.Logged
	Product *core.Product `json:"product,omitempty"`
}

type savedRequest struct {
	Category  string `json:"category"`
	ProductID string `json:"product_id"`
	Grams     Grams  `json:"grams"`
}

type deleteResponse struct {
	Removed core.FoodEntry  `json:"removed"`
	Day     core.DaySummary `json:"day"`
}

// handleGetDay returns a day and makes it the selected date.
func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	key, err := PathDate(r)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	_ = s.journal.SelectDate(key)
	view, err := s.journal.Day(key)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	NewJSONResponse().Data(dayResponse{DayView: view, Rounded: view.Summary.Totals.Rounded()}).Write(w)
}

// openDialog opens the caller's dialog for the date in the path and the
// category in the body.
func (s *Server) openDialog(r *http.Request, category string) (services.Dialog, error) {
	key, err := PathDate(r)
	if err != nil {
		return services.Dialog{}, err
	}
	c, err := core.ParseCategory(category)
	if err != nil {
		return services.Dialog{}, err
	}
	return s.journal.OpenDialog(SessionSlot(r), key, c)
}

// releaseDialog closes a dialog no later request can reach.
func (s *Server) releaseDialog(d services.Dialog) {
	if strings.HasPrefix(d.Slot, requestSlotPrefix) {
		s.journal.ReleaseDialog(d)
	}
}

func (s *Server) handleAddManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	d, err := s.openDialog(r, req.Category)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	defer s.releaseDialog(d)
	req.Label = sanitizeInput(req.Label)
	req.Brand = sanitizeInput(req.Brand)
	logged, err := s.journal.LogManual(r.Context(), d, req.ManualInput)
	if err != nil {
		s.writeError(w, r, "Manual entry failed", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(logged).Write(w)
}

func (s *Server) handleAddText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	d, err := s.openDialog(r, req.Category)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	defer s.releaseDialog(d)
	logged, err := s.journal.LogText(r.Context(), d, sanitizeInput(req.Text), IdempotencyKey(r))
	if err != nil {
		s.writeError(w, r, "Text estimation failed", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(logged).Write(w)
}

func (s *Server) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	// A client-supplied scan is input, not a collaborator result.
	if err := req.Scan.Validate(); err != nil {
		ErrorFromErr(&core.ValidationError{Field: "scan", Reason: err.Error()}).Write(w)
		return
	}
	if err := core.ValidateGrams(float64(req.Grams)); err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	d, err := s.openDialog(r, req.Category)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	defer s.releaseDialog(d)

	logged, err := s.journal.LogScan(r.Context(), d, req.Scan, float64(req.Grams))
	if err != nil {
		s.writeError(w, r, "Label entry failed", err)
		return
	}

	// The catalog is written only once the entry is in the ledger.
	var saved *core.Product
	if req.Save {
		p, err := s.journal.SaveScan(r.Context(), req.Scan)
		switch {
		case err == nil:
			saved = &p
		case errors.Is(err, ledger.ErrProductExists):
			applog.FromContext(r.Context()).Info("Scanned product already saved", "product", req.Scan.ProductName())
		default:
			applog.FromContext(r.Context()).Error("Saving scanned product failed", applog.FieldError, err)
		}
	}
	NewJSONResponse().Status(http.StatusCreated).Data(labelResponse{Logged: logged, Product: saved}).Write(w)
}

func (s *Server) handleAddSaved(w http.ResponseWriter, r *http.Request) {
	var req savedRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	d, err := s.openDialog(r, req.Category)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	defer s.releaseDialog(d)
	logged, err := s.journal.LogSavedProduct(r.Context(), d, req.ProductID, float64(req.Grams))
	if err != nil {
		s.writeError(w, r, "Saved product entry failed", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(logged).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	key, err := PathDate(r)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	removed, err := s.journal.DeleteEntry(r.Context(), key, core.EntryID(r.PathValue("id")))
	if err != nil {
		s.writeError(w, r, "Delete entry failed", err)
		return
	}
	s.writeDeleted(w, key, removed)
}

func (s *Server) handleDeleteAt(w http.ResponseWriter, r *http.Request) {
	key, err := PathDate(r)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	c, err := PathCategory(r, "category")
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	index, err := PathIndex(r, "index")
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	removed, err := s.journal.DeleteAt(r.Context(), key, c, index)
	if err != nil {
		s.writeError(w, r, "Delete entry failed", err)
		return
	}
	s.writeDeleted(w, key, removed)
}

func (s *Server) writeDeleted(w http.ResponseWriter, key core.DateKey, removed core.FoodEntry) {
	view, err := s.journal.Day(key)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	NewJSONResponse().Data(deleteResponse{Removed: removed, Day: view.Summary}).Write(w)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	today := s.journal.Today()
	year, month, err := ParseMonthParams(r.URL.Query(), today)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	view, err := s.months.Get(year, month, today, s.journal.Selected(), func() (core.MonthView, error) {
		return s.journal.Month(year, month)
	})
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	NewJSONResponse().Data(view).Write(w)
}

// writeError logs failures the client cannot fix and writes the mapped
// response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	b := ErrorFromErr(err)
	logger := applog.FromContext(r.Context())
	switch {
	case b.statusCode >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), msg, applog.FieldError, err)
	case b.statusCode == http.StatusConflict:
		logger.InfoContext(r.Context(), msg, applog.FieldError, err)
	}
	b.Write(w)
}
