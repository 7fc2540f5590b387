package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/explorer"
	"github.com/IngaleChinmay04/MongoNexus/internal/stream"
	"github.com/IngaleChinmay04/MongoNexus/internal/wire"
)

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": apperr.Sanitize(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// decode reads and decodes the request body, answering 400 on failure.
func (s *Server) decode(c *gin.Context) (*wire.Request, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		abortWithError(c, apperr.Invalid("body", "could not be read: %v", err))
		return nil, false
	}
	req, err := wire.DecodeRequest(body)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return req, true
}

func schemaRequest(req *wire.Request) explorer.SchemaRequest {
	return explorer.SchemaRequest{
		Database:   req.Database,
		Collection: req.Collection,
		Filter:     req.Filter,
		SampleSize: req.SampleSize,
	}
}

// inferSchema answers POST /api/mongo/schema. Without collection_name the
// whole database is inferred.
func (s *Server) inferSchema(c *gin.Context) {
	req, ok := s.decode(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if req.Collection == "" {
		db, err := s.svc.InferDatabase(ctx, req.Database, req.SampleSize)
		if err != nil {
			s.requestFailed(c, err)
			return
		}
		c.JSON(http.StatusOK, wire.NewDatabaseView(db))
		return
	}

	sch, err := s.svc.InferSchema(ctx, schemaRequest(req))
	if err != nil {
		s.requestFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.NewSchemaView(req.Database, req.Collection, sch))
}

// inferJSONSchema answers POST /api/mongo/schema/jsonschema.
func (s *Server) inferJSONSchema(c *gin.Context) {
	req, ok := s.decode(c)
	if !ok {
		return
	}
	js, err := s.svc.InferJSONSchema(c.Request.Context(), schemaRequest(req))
	if err != nil {
		s.requestFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, js)
}

func (s *Server) requestFailed(c *gin.Context, err error) {
	if c.Request.Context().Err() != nil {
		// Client went away; nobody is listening.
		c.Abort()
		return
	}
	if !apperr.IsValidation(err) {
		s.logger.Warnf("Request %s failed: %v", c.FullPath(), err)
	}
	abortWithError(c, err)
}

// listCollections answers GET /api/mongo/collections?db_name=...
func (s *Server) listCollections(c *gin.Context) {
	database := c.Query("db_name")
	names, err := s.svc.ListCollections(c.Request.Context(), database)
	if err != nil {
		s.requestFailed(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"db_name": database, "collections": names})
}

// find answers POST /api/mongo/find with the matching documents in one
// JSON response.
func (s *Server) find(c *gin.Context) {
	req, ok := s.decode(c)
	if !ok {
		return
	}
	res, err := s.svc.Find(c.Request.Context(), req.Spec(false))
	if err != nil {
		s.requestFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results":         wire.Documents(res.Documents),
		"count":           len(res.Documents),
		"total_count":     res.TotalCount,
		"database_name":   req.Database,
		"collection_name": req.Collection,
	})
}

// batchSizeFromQuery applies ?batch_size= when the body leaves batch_size
// unset.
func (s *Server) batchSizeFromQuery(c *gin.Context, req *wire.Request) bool {
	raw, ok := c.GetQuery("batch_size")
	if !ok || req.BatchSize != 0 {
		return true
	}
	n, err := cast.ToIntE(raw)
	if err != nil || n < 1 {
		abortWithError(c, apperr.Invalid("batch_size", "must be between 1 and %d", s.svc.Limits().MaxBatchSize))
		return false
	}
	req.BatchSize = n
	return true
}

// streamQuery answers POST /api/stream/find and /api/stream/aggregate.
// Validation failures are answered as 400 JSON before the stream starts;
// any later failure is delivered as a single error event.
func (s *Server) streamQuery(aggregate bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := s.decode(c)
		if !ok || !s.batchSizeFromQuery(c, req) {
			return
		}
		ctx := c.Request.Context()

		sess, err := s.svc.Prepare(ctx, req.Spec(aggregate))
		if err != nil && apperr.IsValidation(err) {
			s.sessionFinished(stream.StateFailed)
			abortWithError(c, err)
			return
		}

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			if sess != nil {
				sess.Close()
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
			return
		}

		// Set SSE headers
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		emit := func(e stream.Event) error {
			if err := wire.WriteSSE(c.Writer, e); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}

		if err != nil {
			if ctx.Err() != nil {
				s.sessionFinished(stream.StateCancelled)
				return
			}
			s.sessionFinished(stream.StateFailed)
			s.logger.Warnf("Stream could not start: %v", err)
			_ = emit(stream.Error{Message: apperr.Sanitize(err)})
			return
		}

		if err := sess.Run(ctx, emit); err != nil {
			s.logger.WithSession(sess.ID).Warnf("Stream failed: %v", err)
		}
	}
}

func (s *Server) sessionFinished(state stream.State) {
	if s.metrics != nil {
		s.metrics.SessionFinished(state.String())
	}
}
