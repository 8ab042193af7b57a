package http

import (
	"net/http"

	"xitique/internal/core"
	"xitique/internal/schedule"
	"xitique/internal/storage"
)

type participantResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Position       int    `json:"position"`
	PayoutDate     string `json:"payout_date"`
	DateOverridden bool   `json:"date_overridden"`
	Received       bool   `json:"received"`
	CustomAmount   string `json:"custom_amount,omitempty"`
}

type transactionResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	CreatedAt   string `json:"created_at"`
	Description string `json:"description,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`

	// ParticipantID names the payout recipient; empty outside payouts.
	ParticipantID string `json:"participant_id,omitempty"`
}

type xitiqueResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Kind         string                `json:"kind"`
	BaseAmount   string                `json:"base_amount"`
	Frequency    string                `json:"frequency"`
	StartDate    string                `json:"start_date"`
	Status       string                `json:"status"`
	TargetAmount string                `json:"target_amount,omitempty"`
	Balance      string                `json:"balance"`
	Pot          string                `json:"pot,omitempty"`
	Archived     bool                  `json:"archived"`
	Participants []participantResponse `json:"participants"`
}

type notificationResponse struct {
	ID        string `json:"id"`
	XitiqueID string `json:"xitique_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Date      string `json:"date"`
	Read      bool   `json:"read"`
	Severity  string `json:"severity"`
}

const dateLayout = "2006-01-02"

func toXitiqueResponse(x *core.Xitique) xitiqueResponse {
	resp := xitiqueResponse{
		ID:         x.ID,
		Name:       x.Name,
		Kind:       string(x.Kind),
		BaseAmount: x.BaseAmount.String(),
		Frequency:  string(x.Frequency),
		StartDate:  x.StartDate.Format(dateLayout),
		Status:     string(x.Status),
		Balance:    core.CalculateBalance(x.Transactions).String(),
		Archived:   x.Archived,
	}
	if x.Kind == core.KindIndividual && x.TargetAmount.Cents > 0 {
		resp.TargetAmount = x.TargetAmount.String()
	}
	if x.Kind == core.KindGroup {
		resp.Pot = core.CyclePot(x.BaseAmount, x.Participants).String()
	}
	for _, p := range x.Participants {
		pr := participantResponse{
			ID:             p.ID,
			Name:           p.Name,
			Position:       p.Position,
			PayoutDate:     p.PayoutDate.Format(dateLayout),
			DateOverridden: p.DateOverridden,
			Received:       p.Received,
		}
		if p.CustomAmount != nil {
			pr.CustomAmount = p.CustomAmount.String()
		}
		resp.Participants = append(resp.Participants, pr)
	}
	return resp
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        t.Amount.String(),
		CreatedAt:     t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Description:   t.Description,
		ReferenceID:   t.ReferenceID,
		ParticipantID: t.ParticipantID,
	}
}

type createXitiqueRequest struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	BaseAmount   string   `json:"base_amount"`
	Frequency    string   `json:"frequency"`
	StartDate    string   `json:"start_date"`
	TargetAmount string   `json:"target_amount,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

func (s *Server) handleCreateXitique(w http.ResponseWriter, r *http.Request) {
	var req createXitiqueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	base, err := parseAmount(req.BaseAmount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid base amount")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid start date, expected YYYY-MM-DD")
		return
	}

	x := &core.Xitique{
		Name:       req.Name,
		Kind:       core.Kind(req.Kind),
		BaseAmount: base,
		Frequency:  core.Frequency(req.Frequency),
		StartDate:  start,
	}
	if req.TargetAmount != "" {
		target, err := parseAmount(req.TargetAmount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid target amount")
			return
		}
		x.TargetAmount = target
	}

	created, err := s.svc.Create(r.Context(), x, req.Participants)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.purgeCaches()
	writeJSON(w, http.StatusCreated, toXitiqueResponse(created))
}

func (s *Server) handleListXitiques(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	cacheKey := "active"
	if includeArchived {
		cacheKey = "all"
	}

	xitiques, ok := s.listCache.Get(cacheKey)
	if !ok {
		var err error
		xitiques, err = s.svc.List(r.Context(), includeArchived)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.listCache.Set(cacheKey, xitiques)
	}

	resp := make([]xitiqueResponse, 0, len(xitiques))
	for _, x := range xitiques {
		resp = append(resp, toXitiqueResponse(x))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetXitique(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	x, ok := s.circleCache.Get(id)
	if !ok {
		var err error
		x, err = s.svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.circleCache.Set(id, x)
	}

	writeJSON(w, http.StatusOK, toXitiqueResponse(x))
}

func (s *Server) handleArchiveXitique(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Archive(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.purgeCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.Balance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

type bulkEditRequest struct {
	Name       string `json:"name,omitempty"`
	BaseAmount string `json:"base_amount,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
}

func (s *Server) handleBulkEdit(w http.ResponseWriter, r *http.Request) {
	var req bulkEditRequest
	if !decodeBody(w, r, &req) {
		return
	}

	edit := schedule.BulkEdit{
		Name:      req.Name,
		Frequency: core.Frequency(req.Frequency),
	}
	if req.BaseAmount != "" {
		amount, err := parseAmount(req.BaseAmount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid base amount")
			return
		}
		edit.BaseAmount = &amount
	}
	if req.StartDate != "" {
		date, err := parseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid start date, expected YYYY-MM-DD")
			return
		}
		edit.StartDate = &date
	}

	x, err := s.svc.BulkEdit(r.Context(), r.PathValue("id"), edit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.purgeCaches()
	writeJSON(w, http.StatusOK, toXitiqueResponse(x))
}

type addParticipantRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "participant name is required")
		return
	}

	x, err := s.svc.AddParticipant(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.purgeCaches()
	writeJSON(w, http.StatusCreated, toXitiqueResponse(x))
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	x, err := s.svc.RemoveParticipant(r.Context(), r.PathValue("id"), r.PathValue("pid"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.purgeCaches()
	writeJSON(w, http.StatusOK, toXitiqueResponse(x))
}

type moveParticipantRequest struct {
	Position int      `json:"position"`
	Locked   []string `json:"locked,omitempty"`
}

func (s *Server) handleMoveParticipant(w http.ResponseWriter, r *http.Request) {
	var req moveParticipantRequest
	if !decodeBody(w, r, &req) {
		return
	}

	locked := make(schedule.LockedSet, len(req.Locked))
	for _, id := range req.Locked {
		locked[id] = struct{}{}
	}

	x, err := s.svc.MoveParticipant(r.Context(), r.PathValue("id"), r.PathValue("pid"), req.Position, locked)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.purgeCaches()
	writeJSON(w, http.StatusOK, toXitiqueResponse(x))
}

type setPayoutDateRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleSetPayoutDate(w http.ResponseWriter, r *http.Request) {
	var req setPayoutDateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return
	}

	x, err := s.svc.SetManualPayoutDate(r.Context(), r.PathValue("id"), r.PathValue("pid"), date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.purgeCaches()
	writeJSON(w, http.StatusOK, toXitiqueResponse(x))
}

type togglePayoutRequest struct {
	EditMode bool `json:"edit_mode,omitempty"`
}

func (s *Server) handleTogglePayout(w http.ResponseWriter, r *http.Request) {
	var req togglePayoutRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	x, err := s.svc.TogglePayout(r.Context(), r.PathValue("id"), r.PathValue("pid"), req.EditMode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.purgeCaches()
	writeJSON(w, http.StatusOK, toXitiqueResponse(x))
}

type createTransactionRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	var tx core.Transaction
	switch core.TransactionType(req.Type) {
	case core.Deposit:
		tx, err = s.svc.RecordDeposit(r.Context(), r.PathValue("id"), amount, req.Description)
	case core.Withdrawal:
		tx, err = s.svc.RecordWithdrawal(r.Context(), r.PathValue("id"), amount, req.Description)
	default:
		writeError(w, http.StatusUnprocessableEntity, "type must be deposit or withdrawal")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.purgeCaches()
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	x, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(x.Transactions))
	for _, t := range x.Transactions {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	ns, err := s.store.ListNotifications(r.Context(), unreadOnly)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		resp = append(resp, notificationResponse{
			ID:        n.ID,
			XitiqueID: n.XitiqueID,
			Title:     n.Title,
			Message:   n.Message,
			Date:      n.Date.Format(dateLayout),
			Read:      n.Read,
			Severity:  string(n.Severity),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.store.MarkNotificationRead(r.Context(), r.PathValue("id")); err != nil {
		if err == storage.ErrNotFound {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
