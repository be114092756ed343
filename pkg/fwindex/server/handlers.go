package server

import (
	"bufio"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jamesainslie/fwindex/pkg/fwindex/archive"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/labstack/echo/v4"
)

// sniffLen is how many leading bytes are inspected to pick a content type.
const sniffLen = 3072

func (s *Server) health(c echo.Context) error {
	snap := s.current.Load()
	resp := map[string]interface{}{"status": "ok", "catalog": snap != nil}
	if snap != nil {
		resp["loaded_at"] = snap.loadedAt
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) catalogJSON(c echo.Context) error {
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, snap.raw)
}

// file streams one indexed file. Only paths present in the catalog are
// served.
func (s *Server) file(c echo.Context) error {
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	if s.fetcher == nil {
		return notFound("File origin")
	}

	p := strings.TrimPrefix(c.Request().URL.Path, "/files/")
	if _, ok := snap.engine.Catalog().Record(p); !ok {
		return notFound("File " + strconv.Quote(p))
	}

	rc, err := s.fetcher.Fetch(c.Request().Context(), p)
	if err != nil {
		s.log.Warn("file fetch failed", "path", p, "error", err)
		return fetchFailed(p, err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return fetchFailed(p, err)
	}
	return c.Stream(http.StatusOK, mimetype.Detect(head).String(), br)
}

func (s *Server) session(c echo.Context) (*query.Session, error) {
	sess, err := query.SessionFromValues(c.QueryParams())
	if err != nil {
		return nil, badParameter(err)
	}
	return sess, nil
}

type facetsResponse struct {
	query.Choices
	DeviceChoices []string          `json:"deviceChoices"`
	Aliases       map[string]string `json:"aliases,omitempty"`
	TotalFiles    int               `json:"totalFiles"`
	TotalSize     int64             `json:"totalSize"`
	GeneratedAt   time.Time         `json:"generatedAt"`
	HashAlgorithm string            `json:"hashAlgorithm"`
}

func (s *Server) facets(c echo.Context) error {
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	cat := snap.engine.Catalog()
	return c.JSON(http.StatusOK, facetsResponse{
		Choices:       snap.engine.Choices(),
		DeviceChoices: query.DeviceChoices(cat),
		Aliases:       cat.Aliases,
		TotalFiles:    cat.TotalFiles,
		TotalSize:     cat.TotalSize,
		GeneratedAt:   cat.GeneratedAt,
		HashAlgorithm: cat.HashAlgorithm,
	})
}

type listResponse struct {
	Path    string        `json:"path"`
	Parent  string        `json:"parent"`
	Sort    query.Sort    `json:"sort"`
	Filters query.Filters `json:"filters"`
	Entries []query.Entry `json:"entries"`
	Stats   query.Stats   `json:"stats"`
}

func (s *Server) list(c echo.Context) error {
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}

	entries := snap.engine.List(sess.Path, sess.Filters, sess.Sort)
	if entries == nil {
		entries = []query.Entry{}
	}
	return c.JSON(http.StatusOK, listResponse{
		Path:    sess.Path,
		Parent:  query.ParentOf(sess.Path),
		Sort:    sess.Sort,
		Filters: sess.Filters,
		Entries: entries,
		Stats:   snap.engine.Stats(sess.Path, sess.Filters),
	})
}

func (s *Server) stats(c echo.Context) error {
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap.engine.Stats(sess.Path, sess.Filters))
}

type searchResponse struct {
	Query   string        `json:"query"`
	Filters query.Filters `json:"filters"`
	Hits    []query.Hit   `json:"hits"`
}

func (s *Server) search(c echo.Context) error {
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}

	opts := s.opts.Search
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest("invalid_parameter", "limit must be a positive integer")
		}
		opts.Limit = n
	}

	s.metrics.searches.Inc()
	hits := snap.engine.Search(sess.Query, sess.Filters, opts)
	if hits == nil {
		hits = []query.Hit{}
	}
	return c.JSON(http.StatusOK, searchResponse{Query: sess.Query, Filters: sess.Filters, Hits: hits})
}

// directoryArchive zips every filtered record under ?path=.
func (s *Server) directoryArchive(c echo.Context) error {
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}

	items := archive.DirectoryItems(snap.engine.Records(sess.Filters), sess.Path)
	if len(items) == 0 {
		return notFound("Files under " + strconv.Quote(sess.Path))
	}
	return s.writeArchive(c, "directory", archive.DirectoryArchiveName(sess.Path), items)
}

type selectionRequest struct {
	Paths []string `json:"paths"`
}

// selectionArchive zips the paths in the JSON body, or the sel query
// parameters when the body names none.
func (s *Server) selectionArchive(c echo.Context) error {
	snap, err := s.snapshot()
	if err != nil {
		return err
	}

	var req selectionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return err
		}
	}
	if len(req.Paths) == 0 {
		sess, err := s.session(c)
		if err != nil {
			return err
		}
		req.Paths = sess.Selection()
	}
	if len(req.Paths) == 0 {
		return badRequest("empty_selection", "No files selected.")
	}

	records, missing := archive.ResolveSelection(snap.engine.Catalog(), req.Paths)
	if len(missing) > 0 {
		s.log.Warn("selection names unknown paths", "count", len(missing), "first", missing[0])
	}
	if len(records) == 0 {
		return notFound("Selected files")
	}
	return s.writeArchive(c, "selection", archive.SelectionArchiveName(time.Now()), archive.SelectionItems(records))
}

func (s *Server) writeArchive(c echo.Context, kind, name string, items []archive.Item) error {
	if s.fetcher == nil {
		return notFound("File origin")
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "application/zip")
	h.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	res, err := archive.Build(c.Request().Context(), c.Response(), items, s.fetcher, s.opts.Archive)
	if err != nil {
		s.metrics.archives.WithLabelValues(kind, "error").Inc()
		h.Del(echo.HeaderContentDisposition)
		return err
	}

	s.metrics.archives.WithLabelValues(kind, "ok").Inc()
	s.metrics.omissions.Add(float64(len(res.Omissions)))
	s.metrics.archiveBytes.Add(float64(res.Bytes))
	s.log.Info("archive sent",
		"name", name,
		"entries", res.Entries,
		"omitted", len(res.Omissions),
		"size", res.Bytes,
		"elapsed", res.Elapsed)
	return nil
}
