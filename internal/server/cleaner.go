package server

import (
	"context"
	"time"

	"arkdrop/internal/metrics"
	"arkdrop/internal/syncchan"
)

// runCleaner expires items once at startup and then on every interval.
func (s *Server) runCleaner(ctx context.Context) {
	if s.expireAfter <= 0 {
		return
	}
	if _, err := s.CleanExpired(ctx); err != nil {
		s.log().Error("clean expired items", "error", err)
	}

	ticker := time.NewTicker(s.cleanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanExpired(ctx); err != nil {
				s.log().Error("clean expired items", "error", err)
			}
		}
	}
}

// CleanExpired deletes non-favorite items not updated within the expiry
// window and notifies connected clients when anything was removed.
func (s *Server) CleanExpired(ctx context.Context) (int, error) {
	if s.expireAfter <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.expireAfter)
	count, paths, err := s.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.removeBlobs(ctx, paths)
	metrics.RecordExpired(count)
	if count > 0 {
		s.log().Info("expired items removed", "count", count, "files", len(paths))
		s.hub.BroadcastAll([]byte(syncchan.NotifyPayload))
	}
	return count, nil
}
