package web

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"zigbee-lumi/internal/coordinator"
	"zigbee-lumi/internal/driver"
	"zigbee-lumi/internal/lumi"
	"zigbee-lumi/internal/store"
	"zigbee-lumi/internal/zcl"
)

const maxBodySize = 1 << 20

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.coord.Devices().List(r.Context())
	if err != nil {
		s.logger.Error("list devices", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, devices)
}

// deviceParam resolves the {ieee} path parameter, which may also be a
// friendly name. It writes a 404 when nothing matches.
func (s *Server) deviceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ieee, ok := s.coord.Devices().Lookup(chi.URLParam(r, "ieee"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "device not found")
	}
	return ieee, ok
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	info, err := s.coord.Devices().Info(r.Context(), ieee)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAPIInstallDevice(w http.ResponseWriter, r *http.Request) {
	var req coordinator.InstallRequest
	if !s.decode(w, r, &req) {
		return
	}
	dev, err := s.coord.Devices().Install(r.Context(), req)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, dev)
}

func (s *Server) handleAPIDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	if err := s.coord.Devices().Remove(r.Context(), ieee); err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPICommand(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	var req coordinator.CommandRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Command == "" {
		s.writeError(w, http.StatusBadRequest, "command is required")
		return
	}
	req.IEEE = ieee

	res, err := s.coord.Devices().Execute(r.Context(), req)
	if err != nil {
		s.writeJSON(w, deviceErrorStatus(err), res)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// injectRequest is an inbound message posted as if the gateway had
// received it. Hex carries a binary ZCL frame for Cluster/Endpoint.
type injectRequest struct {
	Description string `json:"description,omitempty"`
	Cluster     uint16 `json:"cluster,omitempty"`
	Endpoint    uint8  `json:"endpoint,omitempty"`
	Hex         string `json:"hex,omitempty"`
}

func (s *Server) handleAPIInjectMessage(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	var req injectRequest
	if !s.decode(w, r, &req) {
		return
	}

	msg := zcl.Message{Description: req.Description}
	if msg.Description == "" {
		data, err := hex.DecodeString(req.Hex)
		if err != nil || len(data) == 0 {
			s.writeError(w, http.StatusBadRequest, "description or hex frame required")
			return
		}
		msg = zcl.Message{ClusterID: req.Cluster, Endpoint: req.Endpoint, Data: data}
	}

	if err := s.coord.HandleMessage(r.Context(), ieee, msg); err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// regionPreview shows what a set_region write would send without sending it.
type regionPreview struct {
	ID           int       `json:"id"`
	Profile      string    `json:"profile"`
	Rect         lumi.Rect `json:"rect"`
	Grid         lumi.Grid `json:"grid"`
	Cells        string    `json:"cells"`
	Payload      string    `json:"payload"`
	ClearPayload string    `json:"clear_payload"`
}

func (s *Server) handleAPIRegionPreview(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	dev, err := s.coord.Store().GetDevice(ieee)
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	profile, err := lumi.ProfileByName(dev.Profile)
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "region id must be an integer")
		return
	}
	var rect lumi.Rect
	for _, f := range []struct {
		key string
		dst *int
	}{{"top", &rect.Top}, {"bottom", &rect.Bottom}, {"left", &rect.Left}, {"right", &rect.Right}} {
		v := r.URL.Query().Get(f.key)
		if v == "" {
			s.writeError(w, http.StatusBadRequest, f.key+" is required")
			return
		}
		if *f.dst, err = strconv.Atoi(v); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", f.key))
			return
		}
	}

	payload, err := lumi.RegionPayload(id, rect, profile)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	grid, _ := lumi.EncodeRect(rect)
	clearPayload, _ := lumi.ClearRegionPayload(id)
	s.writeJSON(w, http.StatusOK, regionPreview{
		ID:           id,
		Profile:      profile.Name,
		Rect:         rect,
		Grid:         grid,
		Cells:        grid.String(),
		Payload:      payload,
		ClearPayload: clearPayload,
	})
}

// decode reads a JSON body; numbers stay json.Number so integer command
// arguments are not rounded through float64.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// deviceErrorStatus maps coordinator and driver errors to HTTP statuses.
func deviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrUnknownDevice), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, driver.ErrInvalidArgument), errors.Is(err, driver.ErrUnsupported), errors.Is(err, zcl.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, driver.ErrStopped):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func (s *Server) writeDeviceError(w http.ResponseWriter, err error) {
	status := deviceErrorStatus(err)
	if status == http.StatusBadGateway {
		s.logger.Warn("device request failed", "err", err)
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
