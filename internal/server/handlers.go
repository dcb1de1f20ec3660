package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/empdb/internal/emp"
	"github.com/koustreak/empdb/internal/filestore"
	"github.com/koustreak/empdb/internal/logger"
)

// maxListLimit caps ?limit so a request cannot size a huge buffer.
const maxListLimit = 10000

type listResponse struct {
	Count int       `json:"count"`
	Rows  []emp.Row `json:"rows"`
}

type writeResponse struct {
	Empno int32 `json:"empno,omitempty"`
	Rows  int64 `json:"rows"`
}

type rowRequest struct {
	Salary float64 `json:"salary"`
	Ename  *string `json:"ename"`
}

func (req rowRequest) row() (emp.Row, error) {
	r := emp.Row{Salary: req.Salary, EnameNull: req.Ename == nil}
	if req.Ename != nil {
		if len(*req.Ename) > emp.EnameMax {
			return emp.Row{}, badRequest("ename longer than 50 bytes")
		}
		r.Ename = *req.Ename
	}
	return r, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.h.IsOpen()
	s.mu.Unlock()

	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "handle": s.h.ID().String()})
}

// handleList serves GET /employees. With ?limit it is a bounded fetch of at
// most limit rows, otherwise it drains the table.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", -1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	batch, err := intParam(r, "batch", emp.DefaultBatch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []emp.Row
	if limit >= 0 {
		rows = make([]emp.Row, min(limit, maxListLimit))
		n, ferr := s.store.FetchBounded(r.Context(), rows, batch)
		rows, err = rows[:n], ferr
	} else {
		rows, err = s.store.FetchAll(r.Context(), 0)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, listResponse{Count: len(rows), Rows: rows})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	row, found, err := s.store.GetByID(r.Context(), id)
	s.mu.Unlock()

	switch {
	case err != nil:
		s.writeError(w, r, err)
	case !found:
		s.writeJSON(w, r, http.StatusNotFound, errorBody{Error: "employee not found", Code: "not_found"})
	default:
		s.writeJSON(w, r, http.StatusOK, row)
	}
}

// handleCreate serves POST /employees: a locked create, committed here.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	row, err := decodeRow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int32
	err = s.commitOrRollback(r.Context(), func(ctx context.Context) error {
		var cerr error
		id, cerr = s.store.CreateWithLock(ctx, row)
		return cerr
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, writeResponse{Empno: id, Rows: 1})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	row, err := decodeRow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	row.Empno = id

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err = s.commitOrRollback(r.Context(), func(ctx context.Context) error {
		var uerr error
		n, uerr = s.store.Update(ctx, row)
		return uerr
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, writeResponse{Empno: id, Rows: n})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err = s.commitOrRollback(r.Context(), func(ctx context.Context) error {
		var derr error
		n, derr = s.store.Delete(ctx, id)
		return derr
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, writeResponse{Empno: id, Rows: n})
}

// handleSnapshot serves POST /snapshots: drain the table and export it.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		s.writeJSON(w, r, http.StatusNotFound, errorBody{Error: "snapshot export not configured", Code: "not_found"})
		return
	}

	s.mu.Lock()
	rows, err := s.store.FetchAll(r.Context(), 0)
	cfg := s.h.Config()
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	info, err := s.exporter.Export(r.Context(), &filestore.Snapshot{
		Handle: s.h.ID().String(),
		Driver: string(cfg.Driver),
		Table:  cfg.Table,
		Count:  len(rows),
		Rows:   rows,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, info)
}

// commitOrRollback runs fn in the handle's transaction and commits. Any
// failure rolls the transaction back.
func (s *Server) commitOrRollback(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		err = s.h.Commit(ctx)
	}
	if err != nil && s.h.InTx() {
		if rbErr := s.h.Rollback(ctx); rbErr != nil {
			logger.FromContext(ctx).ErrorWith("rollback failed", rbErr, nil)
		}
	}
	return err
}

func decodeRow(r *http.Request) (emp.Row, error) {
	var req rowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return emp.Row{}, badRequest("invalid JSON body: " + err.Error())
	}
	return req.row()
}

func idParam(r *http.Request) (int32, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, badRequest("invalid employee id")
	}
	return int32(id), nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid " + name)
	}
	return n, nil
}
