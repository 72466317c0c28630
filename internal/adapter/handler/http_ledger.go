package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rl1809/asset-ledger/internal/auth"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/core/service"
)

const dateLayout = "2006-01-02"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	BaseID   refID  `json:"baseId"`
}

func (h *HTTPHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *HTTPHandler) register(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.auth.Register(r.Context(), auth.Registration{
		Username: req.Username,
		Password: req.Password,
		Role:     domain.Role(req.Role),
		BaseID:   string(req.BaseID),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (h *HTTPHandler) listBases(w http.ResponseWriter, r *http.Request) {
	bases, err := h.refs.ListBases(r.Context(), principalFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bases)
}

func (h *HTTPHandler) createBase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b, err := h.refs.CreateBase(r.Context(), principalFrom(r.Context()), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (h *HTTPHandler) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.refs.ListAssets(r.Context(), principalFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, assets)
}

func (h *HTTPHandler) createAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := h.refs.CreateAsset(r.Context(), principalFrom(r.Context()), req.Name, req.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *HTTPHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.refs.ListUsers(r.Context(), principalFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *HTTPHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.auth.NewUser(auth.Registration{
		Username: req.Username,
		Password: req.Password,
		Role:     domain.Role(req.Role),
		BaseID:   string(req.BaseID),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err = h.refs.CreateUser(r.Context(), principalFrom(r.Context()), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

// eventID prefers the body id over the Idempotency-Key header.
func eventID(r *http.Request, bodyID string) string {
	if id := strings.TrimSpace(bodyID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func respondRecorded(w http.ResponseWriter, record interface{}, replayed bool) {
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		respondJSON(w, http.StatusOK, record)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (h *HTTPHandler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       refID    `json:"id"`
		AssetID  refID    `json:"assetId"`
		BaseID   refID    `json:"baseId"`
		Quantity quantity `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, replayed, err := h.movements.RecordPurchase(r.Context(), principalFrom(r.Context()), service.PurchaseRequest{
		ID:       eventID(r, string(req.ID)),
		AssetID:  string(req.AssetID),
		BaseID:   string(req.BaseID),
		Quantity: int64(req.Quantity),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondRecorded(w, rec, replayed)
}

func (h *HTTPHandler) recordTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         refID    `json:"id"`
		AssetID    refID    `json:"assetId"`
		FromBaseID refID    `json:"fromBaseId"`
		ToBaseID   refID    `json:"toBaseId"`
		Quantity   quantity `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, replayed, err := h.movements.RecordTransfer(r.Context(), principalFrom(r.Context()), service.TransferRequest{
		ID:         eventID(r, string(req.ID)),
		AssetID:    string(req.AssetID),
		FromBaseID: string(req.FromBaseID),
		ToBaseID:   string(req.ToBaseID),
		Quantity:   int64(req.Quantity),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondRecorded(w, rec, replayed)
}

func (h *HTTPHandler) recordAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         refID    `json:"id"`
		AssetID    refID    `json:"assetId"`
		BaseID     refID    `json:"baseId"`
		AssignedTo string   `json:"assignedTo"`
		Quantity   quantity `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, replayed, err := h.movements.RecordAssignment(r.Context(), principalFrom(r.Context()), service.AssignmentRequest{
		ID:         eventID(r, string(req.ID)),
		AssetID:    string(req.AssetID),
		BaseID:     string(req.BaseID),
		AssignedTo: req.AssignedTo,
		Quantity:   int64(req.Quantity),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondRecorded(w, rec, replayed)
}

func (h *HTTPHandler) recordExpenditure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       refID    `json:"id"`
		AssetID  refID    `json:"assetId"`
		BaseID   refID    `json:"baseId"`
		Reason   string   `json:"reason"`
		Quantity quantity `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, replayed, err := h.movements.RecordExpenditure(r.Context(), principalFrom(r.Context()), service.ExpenditureRequest{
		ID:       eventID(r, string(req.ID)),
		AssetID:  string(req.AssetID),
		BaseID:   string(req.BaseID),
		Reason:   req.Reason,
		Quantity: int64(req.Quantity),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondRecorded(w, rec, replayed)
}

func (h *HTTPHandler) listMovements(kind domain.MovementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := parseWindow(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		q := r.URL.Query()
		movements, err := h.queries.Movements(r.Context(), principalFrom(r.Context()), domain.MovementQuery{
			Kind:       kind,
			AssetID:    q.Get("assetId"),
			BaseID:     q.Get("baseId"),
			FromBaseID: q.Get("fromBaseId"),
			ToBaseID:   q.Get("toBaseId"),
			Start:      start,
			End:        end,
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		records := make([]interface{}, 0, len(movements))
		for _, m := range movements {
			records = append(records, typedRecord(m))
		}
		respondJSON(w, http.StatusOK, records)
	}
}

func typedRecord(m domain.Movement) interface{} {
	switch m.Kind {
	case domain.KindPurchase:
		return m.Purchase()
	case domain.KindTransfer:
		return m.Transfer()
	case domain.KindAssignment:
		return m.Assignment()
	case domain.KindExpenditure:
		return m.Expenditure()
	}
	return m
}

func (h *HTTPHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	f, err := balanceFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondBalances(w, r, f)
}

func (h *HTTPHandler) logisticsDashboard(w http.ResponseWriter, r *http.Request) {
	f, err := balanceFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f.GroupByBase = true
	h.respondBalances(w, r, f)
}

func (h *HTTPHandler) baseBalances(w http.ResponseWriter, r *http.Request) {
	f, err := balanceFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f.BaseID = chi.URLParam(r, "baseId")
	h.respondBalances(w, r, f)
}

func (h *HTTPHandler) respondBalances(w http.ResponseWriter, r *http.Request, f domain.BalanceFilter) {
	rows, err := h.queries.Balances(r.Context(), principalFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *HTTPHandler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	o, err := h.queries.Overview(r.Context(), principalFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *HTTPHandler) stock(w http.ResponseWriter, r *http.Request) {
	positions, err := h.queries.Positions(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("baseId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

func balanceFilter(r *http.Request) (domain.BalanceFilter, error) {
	start, end, err := parseWindow(r)
	if err != nil {
		return domain.BalanceFilter{}, err
	}
	q := r.URL.Query()
	return domain.BalanceFilter{
		BaseID:      q.Get("baseId"),
		AssetType:   q.Get("assetType"),
		Start:       start,
		End:         end,
		GroupByBase: strings.EqualFold(q.Get("groupBy"), "base"),
	}, nil
}

// parseWindow reads startDate and endDate from the query string.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	return dateWindow(q.Get("startDate"), q.Get("endDate"))
}

// dateWindow parses YYYY-MM-DD bounds as UTC days. endDate is inclusive, so the returned
// end is the following midnight. Either bound may be empty.
func dateWindow(startDate, endDate string) (time.Time, time.Time, error) {
	var start, end time.Time
	if startDate != "" {
		t, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return start, end, fmt.Errorf("%w: startDate must be YYYY-MM-DD", domain.ErrValidation)
		}
		start = t
	}
	if endDate != "" {
		t, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return start, end, fmt.Errorf("%w: endDate must be YYYY-MM-DD", domain.ErrValidation)
		}
		end = t.AddDate(0, 0, 1)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return start, end, fmt.Errorf("%w: startDate is after endDate", domain.ErrValidation)
	}
	return start, end, nil
}
