package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/errs"
	"github.com/koba/tabledef/internal/metadata"
	"github.com/koba/tabledef/internal/query"
)

type omniHandler struct {
	querier Querier
	doc     *metadata.Document
	log     zerolog.Logger
}

type windowResponse struct {
	Data   [][]interface{} `json:"data"`
	Fields []string        `json:"fields"`
}

// GetWindow serves ?from=<unix>&to=<unix>&fields=a,b
func (h *omniHandler) GetWindow(w http.ResponseWriter, r *http.Request) {
	const op errs.Op = "api.GetWindow"

	window, err := parseWindow(r)
	if err != nil {
		errs.HTTPErrorResponse(w, h.log, errs.E(errs.InvalidRequest, op, err))
		return
	}
	annotateWindow(r.Context(), window)

	result, err := h.querier.SelectWindow(r.Context(), window)
	if err != nil {
		errs.HTTPErrorResponse(w, h.log, errs.E(op, err))
		return
	}

	writeJSON(w, h.log, windowResponse{Data: result.Rows, Fields: result.Fields})
}

// GetInfo serves the metadata document
func (h *omniHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	const op errs.Op = "api.GetInfo"

	data, err := h.doc.MarshalJSON()
	if err != nil {
		errs.HTTPErrorResponse(w, h.log, errs.E(errs.Internal, op, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func parseWindow(r *http.Request) (query.Window, error) {
	var window query.Window

	params := r.URL.Query()

	from, err := parseUnix(params.Get("from"))
	if err != nil {
		return window, fmt.Errorf("parsing from: %w", err)
	}
	window.From = from

	to, err := parseUnix(params.Get("to"))
	if err != nil {
		return window, fmt.Errorf("parsing to: %w", err)
	}
	window.To = to

	if fields := params.Get("fields"); fields != "" {
		window.Fields = strings.Split(fields, ",")
	}

	return window, nil
}

func parseUnix(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}

	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}

	t := time.Unix(sec, 0).UTC()

	return &t, nil
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response")
	}
}
