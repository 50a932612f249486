package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
	"github.com/vitals-triage-server/internal/middleware"
	"github.com/vitals-triage-server/internal/service"
)

const healthCheckTimeout = 2 * time.Second

// AssessRequest is the body of a stateless assessment.
type AssessRequest struct {
	Entry      *domain.Entry      `json:"entry"`
	Thresholds *domain.Thresholds `json:"thresholds,omitempty"`
	Conditions []string           `json:"conditions,omitempty"`
}

// EntryList is the response body of an entry listing.
type EntryList struct {
	Entries []*domain.Entry `json:"entries"`
	Count   int             `json:"count"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":     state,
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}

func (s *Server) handleAssess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}

	assessment, err := s.svc.Assess(req.Entry, req.Thresholds, req.Conditions)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleDefaultThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Engine().Defaults())
}

func (s *Server) handleGetProfile(c *gin.Context) {
	profile, err := s.svc.GetProfile(c.Request.Context(), c.Param("patientID"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handlePutProfile(c *gin.Context) {
	var profile domain.PatientProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}
	profile.PatientID = c.Param("patientID")

	saved, err := s.svc.UpsertProfile(c.Request.Context(), &profile)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleCreateEntry(c *gin.Context) {
	var entry domain.Entry
	if err := c.ShouldBindJSON(&entry); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}
	entry.PatientID = c.Param("patientID")

	saved, err := s.svc.RecordEntry(c.Request.Context(), &entry)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// handleListEntries serves either a page (limit, offset) or a time window (from, to).
func (s *Server) handleListEntries(c *gin.Context) {
	ctx := c.Request.Context()
	patientID := c.Param("patientID")

	var (
		entries []*domain.Entry
		err     error
	)

	if c.Query("from") != "" || c.Query("to") != "" {
		from, perr := time.Parse(time.RFC3339, c.Query("from"))
		if perr != nil {
			s.respondError(c, domain.NewValidationError("from", "must be an RFC3339 timestamp", c.Query("from")))
			return
		}
		to, perr := time.Parse(time.RFC3339, c.Query("to"))
		if perr != nil {
			s.respondError(c, domain.NewValidationError("to", "must be an RFC3339 timestamp", c.Query("to")))
			return
		}
		entries, err = s.svc.ListEntriesInRange(ctx, patientID, from, to)
	} else {
		limit, lerr := queryInt(c, "limit")
		if lerr != nil {
			s.respondError(c, lerr)
			return
		}
		offset, oerr := queryInt(c, "offset")
		if oerr != nil {
			s.respondError(c, oerr)
			return
		}
		entries, err = s.svc.ListEntries(ctx, patientID, limit, offset)
	}

	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, EntryList{Entries: entries, Count: len(entries)})
}

func (s *Server) handleGetEntry(c *gin.Context) {
	entry, err := s.svc.GetEntry(c.Request.Context(), c.Param("patientID"), c.Param("entryID"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(c *gin.Context) {
	if err := s.svc.DeleteEntry(c.Request.Context(), c.Param("patientID"), c.Param("entryID")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStream(c *gin.Context) {
	s.hub.ServeWS(c.Writer, c.Request, c.Param("patientID"))
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", raw)
	}
	return n, nil
}

func (s *Server) badRequest(c *gin.Context, message string, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest,
		domain.NewAPIError(domain.ErrInvalidInput, message, err.Error(), c.GetString(middleware.CorrelationIDKey)))
}

// respondError maps service errors onto status codes and APIError bodies.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest,
			domain.NewAPIError(domain.ErrInvalidInput, ve.Error(), ve.Field, requestID))
	case errors.Is(err, domain.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound,
			domain.NewAPIError(domain.ErrNotFoundCode, "resource not found", err.Error(), requestID))
	case errors.Is(err, service.ErrProfileStoreUnavailable):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable,
			domain.NewAPIError(domain.ErrUnavailable, "profile store unavailable", "", requestID))
	case errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatusJSON(http.StatusGatewayTimeout,
			domain.NewAPIError(domain.ErrUnavailable, "request timed out", "", requestID))
	default:
		s.log.WithFields(logrus.Fields{
			"correlation_id": requestID,
			"path":           c.FullPath(),
			"error":          err,
		}).Error("Request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			domain.NewAPIError(domain.ErrInternalServer, "internal server error", "", requestID))
	}
}
