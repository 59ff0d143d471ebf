package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"arkdrop/internal/blobstore"
	"arkdrop/internal/models"
	"arkdrop/internal/store"
)

const (
	contentField    = "content"
	filesField      = "files"
	maxContentBytes = 1 << 20 // 1 MiB
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	s.writeJSON(w, http.StatusOK, models.ListSnapshot{
		List:          items,
		ExpireSeconds: int64(s.expireAfter / time.Second),
	})
}

// handleCreate streams each multipart file straight into the blob store.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("multipart body required: %w", err)))
		return
	}

	ctx := r.Context()
	item := &models.Item{}
	var stored []string
	fail := func(status int, err error) {
		s.removeBlobs(ctx, stored)
		s.writeErrorReq(w, r, status, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(http.StatusBadRequest, badRequest(fmt.Errorf("read multipart: %w", err)))
			return
		}

		switch part.FormName() {
		case contentField:
			content, err := readContent(part)
			_ = part.Close()
			if err != nil {
				fail(http.StatusBadRequest, badRequest(err))
				return
			}
			item.Content = content
		case filesField:
			name := path.Base(strings.ReplaceAll(part.FileName(), "\\", "/"))
			if name == "" || name == "." || name == "/" {
				_ = part.Close()
				continue
			}
			res, err := s.blobs.Put(ctx, name, part)
			_ = part.Close()
			if err != nil {
				fail(http.StatusInternalServerError, fmt.Errorf("store %s: %w", name, err))
				return
			}
			stored = append(stored, res.Key)
			contentType := strings.TrimSpace(part.Header.Get("Content-Type"))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			item.Attachments = append(item.Attachments, models.Attachment{
				FileName:    name,
				FilePath:    res.Key,
				FileSize:    res.SizeBytes,
				ContentType: contentType,
			})
		default:
			_ = part.Close()
		}
	}

	if !item.HasContent() && len(item.Attachments) == 0 {
		fail(http.StatusBadRequest, badRequest(errors.New("content or files required")))
		return
	}

	if err := s.store.CreateItem(ctx, item); err != nil {
		fail(http.StatusInternalServerError, err)
		return
	}
	s.log().Debug("item created", "id", item.ID, "attachments", len(item.Attachments))
	s.writeOK(w)
}

func readContent(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxContentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	if len(data) > maxContentBytes {
		return "", fmt.Errorf("content exceeds %d bytes", maxContentBytes)
	}
	return string(data), nil
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	s.mutateItem(w, r, func(ctx context.Context, id int64) ([]string, error) {
		return nil, s.store.ToggleFavorite(ctx, id)
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mutateItem(w, r, s.store.DeleteItem)
}

func (s *Server) mutateItem(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) ([]string, error)) {
	id, err := parseItemID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	paths, err := fn(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeErrorReq(w, r, http.StatusNotFound, fmt.Errorf("item %d not found", id))
			return
		}
		s.writeErrorReq(w, r, http.StatusInternalServerError, err)
		return
	}
	s.removeBlobs(r.Context(), paths)
	s.writeOK(w)
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	paths, err := s.store.Clean(r.Context())
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, err)
		return
	}
	s.removeBlobs(r.Context(), paths)
	s.log().Info("board cleaned", "files", len(paths))
	s.writeOK(w)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	f, err := s.blobs.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrInvalidKey) || errors.Is(err, os.ErrNotExist) {
			s.writeErrorReq(w, r, http.StatusNotFound, fmt.Errorf("file %q not found", key))
			return
		}
		s.writeErrorReq(w, r, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, err)
		return
	}
	http.ServeContent(w, r, key, info.ModTime(), f)
}
