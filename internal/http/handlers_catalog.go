package http

import (
	"net/http"

	"kcal/internal/core"
	"kcal/internal/estimate"
)

type goalsRequest struct {
	Calories FormValue `json:"calories"`
	Carbs    FormValue `json:"carbs"`
	Protein  FormValue `json:"protein"`
	Fat      FormValue `json:"fat"`
}

type scanResponse struct {
	Scan       estimate.LabelScan `json:"scan"`
	PerHundred bool               `json:"per_hundred"`
	// Product is the scan as it would be saved to the catalog.
	Product core.Product `json:"product"`
}

func (s *Server) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.journal.Goals()).Write(w)
}

// handlePutGoals applies each field independently; fields that do not
// parse to a positive number keep their stored value.
func (s *Server) handlePutGoals(w http.ResponseWriter, r *http.Request) {
	var req goalsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	goals, err := s.journal.UpdateGoals(r.Context(), core.GoalsInput{
		Calories: string(req.Calories),
		Carbs:    string(req.Carbs),
		Protein:  string(req.Protein),
		Fat:      string(req.Fat),
	})
	if err != nil {
		s.writeError(w, r, "Goals update failed", err)
		return
	}
	NewJSONResponse().Data(goals).Write(w)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.journal.Products()).Write(w)
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var p core.Product
	if err := DecodeJSON(w, r, &p); err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	p.ID = ""
	p.Name = sanitizeInput(p.Name)
	saved, err := s.journal.AddProduct(r.Context(), p)
	if err != nil {
		s.writeError(w, r, "Add product failed", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(saved).Write(w)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.journal.RemoveProduct(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, "Remove product failed", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleScanLabel reads an uploaded label photo. The form may carry the
// date and category of the dialog the scan belongs to.
func (s *Server) handleScanLabel(w http.ResponseWriter, r *http.Request) {
	img, err := ReadLabelImage(w, r)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	key := s.journal.Today()
	if v := r.FormValue("date"); v != "" {
		if key, err = core.ParseDateKey(v); err != nil {
			ErrorFromErr(err).Write(w)
			return
		}
	}
	category := core.Other
	if v := r.FormValue("category"); v != "" {
		if category, err = core.ParseCategory(v); err != nil {
			ErrorFromErr(err).Write(w)
			return
		}
	}
	d, err := s.journal.OpenDialog(SessionSlot(r), key, category)
	if err != nil {
		ErrorFromErr(err).Write(w)
		return
	}
	defer s.releaseDialog(d)
	scan, err := s.journal.ScanLabel(r.Context(), d, img)
	if err != nil {
		s.writeError(w, r, "Label scan failed", err)
		return
	}
	NewJSONResponse().Data(scanResponse{
		Scan:       scan,
		PerHundred: scan.PerHundred(),
		Product:    scan.AsProduct(),
	}).Write(w)
}

func (s *Server) handleSearchFoods(w http.ResponseWriter, r *http.Request) {
	match, err := s.journal.FindFood(r.Context(), sanitizeInput(r.URL.Query().Get("q")))
	if err != nil {
		s.writeError(w, r, "Food search failed", err)
		return
	}
	NewJSONResponse().Data(match).Write(w)
}

func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	p, ok := s.journal.Preview(sessionSlotFromPath(r))
	if !ok {
		NotFoundError("no preview").Write(w)
		return
	}
	NewJSONResponse().Data(p).Write(w)
}

func (s *Server) handleDismissDialog(w http.ResponseWriter, r *http.Request) {
	s.journal.DismissDialog(sessionSlotFromPath(r))
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// sessionSlotFromPath maps the {slot} path value to the slot name used
// for the same client's X-Session-ID.
func sessionSlotFromPath(r *http.Request) string {
	return "session:" + sanitizeInput(r.PathValue("slot"))
}
