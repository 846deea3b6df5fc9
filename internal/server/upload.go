package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/pdfchat/internal/indexer"
	"github.com/hyperjump/pdfchat/internal/models"
	"go.uber.org/zap"
)

const (
	uploadMessage    = "PDF uploaded and indexed successfully"
	multipartMemory  = 8 << 20
	defaultUploadMax = 32 << 20
)

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = defaultUploadMax
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		s.respondError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}
	chunkSize, overlap, err := s.chunkParams(r.FormValue("chunk_size"), r.FormValue("chunk_overlap"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	text, err := s.extractor.ExtractBytes(content, ".pdf")
	if err != nil {
		s.logger.Warn("pdf extraction failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusBadRequest, "could not read PDF: "+err.Error())
		return
	}

	embedder, err := s.embedder(r.FormValue("api_key"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	defer embedder.Close()

	info, err := s.indexer.IndexDocument(r.Context(), indexer.DocumentInput{
		Filename:     header.Filename,
		Text:         text,
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
	}, embedder)
	if err != nil {
		s.logger.Error("indexing failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.UploadResponse{
		Message:     uploadMessage,
		DocumentID:  info.ID,
		ChunksCount: info.ChunksCount,
		Filename:    info.Filename,
	})
}

// chunkParams reads the optional form overrides. With neither set the configured
// defaults apply; an explicit chunk_size without chunk_overlap means no overlap.
func (s *Server) chunkParams(sizeValue, overlapValue string) (int, int, error) {
	size := s.config.Indexing.ChunkSize
	overlap := s.config.Indexing.ChunkOverlap
	if sizeValue != "" {
		n, err := strconv.Atoi(sizeValue)
		if err != nil {
			return 0, 0, errors.New("chunk_size must be an integer")
		}
		size = n
		overlap = 0
	}
	if overlapValue != "" {
		n, err := strconv.Atoi(overlapValue)
		if err != nil {
			return 0, 0, errors.New("chunk_overlap must be an integer")
		}
		overlap = n
	}
	return size, overlap, nil
}
