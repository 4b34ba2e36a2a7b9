package httpapi

import (
	"encoding/json"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/riskbook-dev/riskbook/internal/importer"
)

// importForm reads the multipart fields shared by preview and commit:
// file (required), platform (optional, auto-detect when empty), and
// mapping (optional JSON object of canonical field -> column index).
func (s *Server) importForm(c *gin.Context) (file multipart.File, fileName, platform string, overrides map[string]int, ok bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.badRequest(c, "multipart 'file' field is required")
		return nil, "", "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		s.badRequest(c, "unreadable upload")
		return nil, "", "", nil, false
	}

	if raw := c.PostForm("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			f.Close()
			s.badRequest(c, "mapping must be a JSON object of field name to column index")
			return nil, "", "", nil, false
		}
	}
	return f, fh.Filename, c.PostForm("platform"), overrides, true
}

const previewSampleSize = 20

func (s *Server) previewImport(c *gin.Context) {
	f, _, platform, overrides, ok := s.importForm(c)
	if !ok {
		return
	}
	defer f.Close()

	p, err := s.importer.Preview(f, platform, overrides)
	if err != nil {
		s.fail(c, err)
		return
	}
	// The UI only needs a sample to confirm the mapping.
	if len(p.Trades) > previewSampleSize {
		p.Trades = p.Trades[:previewSampleSize]
	}
	s.respond(c, http.StatusOK, p)
}

func (s *Server) commitImport(c *gin.Context) {
	accountID := c.PostForm("account")
	if accountID == "" {
		s.badRequest(c, "multipart 'account' field is required")
		return
	}
	f, fileName, platform, overrides, ok := s.importForm(c)
	if !ok {
		return
	}
	defer f.Close()

	batch, err := s.importer.Commit(c.Request.Context(), userID(c), accountID, platform, fileName, f, overrides)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.invalidateMetrics(accountID)
	if s.hub != nil {
		// Fresh trades change the account's risk state; push the new snapshot.
		if ov, err := s.accounts.Overview(c.Request.Context(), userID(c), accountID); err == nil {
			s.hub.AccountUpdated(accountID, ov)
		}
	}
	s.respond(c, http.StatusCreated, batch)
}

func (s *Server) listPlatforms(c *gin.Context) {
	reg := s.importer.Registry()
	type platformInfo struct {
		Name   string          `json:"name"`
		Schema importer.Schema `json:"schema"`
	}
	names := reg.Platforms()
	out := make([]platformInfo, 0, len(names))
	for _, name := range names {
		out = append(out, platformInfo{Name: name, Schema: reg.Get(name).Schema()})
	}
	s.respond(c, http.StatusOK, out)
}
