package server

import (
	"io"
	"net/http"

	"github.com/Iron-Ham/pairview/internal/extract"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/peer"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP", "service": ServiceName})
}

type rejectedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type uploadResponse struct {
	Files    []pairing.File `json:"files"`
	Rejected []rejectedFile `json:"rejected,omitempty"`
	Pairs    []pairing.Pair `json:"pairs"`
}

// handleUpload stores every "file" part of a multipart batch and makes the
// batch the working set.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes*uploadBatchFactor)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart/form-data upload")
		return
	}

	resp := uploadResponse{Files: []pairing.File{}}
	parts := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed upload: "+err.Error())
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		parts++
		f, err := s.deps.Store.Put(part.FileName(), part)
		_ = part.Close()
		if err != nil {
			resp.Rejected = append(resp.Rejected, rejectedFile{Name: part.FileName(), Error: err.Error()})
			continue
		}
		resp.Files = append(resp.Files, f)
	}
	if parts == 0 {
		writeError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	resp.Pairs = s.deps.Controller.Upload(resp.Files)
	s.logger.Info("upload received", "files", len(resp.Files), "rejected", len(resp.Rejected), "pairs", len(resp.Pairs))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePairs(w http.ResponseWriter, _ *http.Request) {
	pairs := s.deps.Controller.Pairs()
	if pairs == nil {
		pairs = []pairing.Pair{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Report())
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Controller.Open(r.Context(), r.PathValue("base"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type fieldsResponse struct {
	Pair   pairing.Pair        `json:"pair"`
	Fields []extract.FieldNode `json:"fields"`
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	base := r.PathValue("base")
	nodes, err := s.deps.Controller.Select(r.Context(), base)
	if err != nil {
		s.fail(w, err)
		return
	}
	if nodes == nil {
		nodes = []extract.FieldNode{}
	}
	pair, _ := s.deps.Controller.Selected()
	writeJSON(w, http.StatusOK, fieldsResponse{Pair: pair, Fields: nodes})
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	outcome, err := s.deps.Controller.Click(r.Context(), key)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"field": key, "outcome": outcome})
}

type peerStatus struct {
	peer.HandleInfo
	Connected bool `json:"connected"`
}

type peersResponse struct {
	Peers   []peerStatus `json:"peers"`
	Pending []string     `json:"pending"`
	// Connected lists every open channel, including peers the registry
	// no longer tracks.
	Connected []string `json:"connected"`
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	resp := peersResponse{Peers: []peerStatus{}, Pending: []string{}, Connected: []string{}}
	if s.deps.Peers != nil {
		for _, info := range s.deps.Peers.Handles() {
			st := peerStatus{HandleInfo: info}
			if s.deps.Channels != nil {
				st.Connected = s.deps.Channels.Connected(info.Name)
			}
			resp.Peers = append(resp.Peers, st)
		}
		resp.Pending = append(resp.Pending, s.deps.Peers.Pending()...)
	}
	if s.deps.Channels != nil {
		resp.Connected = append(resp.Connected, s.deps.Channels.Names()...)
	}
	writeJSON(w, http.StatusOK, resp)
}
