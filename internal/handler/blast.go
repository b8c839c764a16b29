package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"gowa-blast/internal/model"
	"gowa-blast/internal/rows"
)

// POST /api/blast
//
// Multipart form: "file" holds the recipient sheet (CSV or XLSX),
// "mode" selects text or template, and the template* fields configure
// the template for template mode. The response is the full per-row
// report; the request blocks until every row has been attempted.
func (h *Handler) Blast(c echo.Context) error {
	mode := model.Mode(strings.TrimSpace(c.FormValue("mode")))
	if mode == "" {
		mode = model.ModeText
	}
	if mode != model.ModeText && mode != model.ModeTemplate {
		return ErrorResponse(c, http.StatusBadRequest, "Mode must be text or template", CodeInvalidMode, string(mode))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Recipient file is required", CodeFileRequired, err.Error())
	}
	src, err := fileHeader.Open()
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Cannot open uploaded file", CodeParseFailed, err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Cannot read uploaded file", CodeParseFailed, err.Error())
	}

	records, err := rows.Parse(fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, rows.ErrUnsupportedFormat) {
			return ErrorResponse(c, http.StatusBadRequest, "Unsupported file format", CodeUnsupportedFormat, err.Error())
		}
		return ErrorResponse(c, http.StatusBadRequest, "Cannot parse uploaded file", CodeParseFailed, err.Error())
	}
	batch := rows.Normalize(records, mode)

	tmpl := model.TemplateRef{
		Name:     strings.TrimSpace(c.FormValue("templateName")),
		Language: strings.TrimSpace(c.FormValue("templateLanguage")),
		Params:   rows.SplitParams(c.FormValue("templateParams")),
	}
	if tmpl.Language == "" {
		tmpl.Language = "en"
	}

	report, err := h.blaster.Run(c.Request().Context(), batch, mode, tmpl)
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Blast completed", report)
}

// GET /api/blasts
func (h *Handler) ListBlasts(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	reports, err := h.history.ListBlasts(c.Request().Context(), limit)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to load blast history", CodeInternal, err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Blast history retrieved", map[string]interface{}{
		"total":  len(reports),
		"blasts": reports,
	})
}
