package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sirgibblets/achew-core/internal/config"
	"github.com/sirgibblets/achew-core/internal/events"
	"github.com/sirgibblets/achew-core/internal/model"
	"github.com/sirgibblets/achew-core/internal/pipeline"
)

// api wires echo handlers to a single Supervisor, one method per route,
// collapsed onto achewd's one pipeline resource.
type api struct {
	sup   *pipeline.Supervisor
	hub   *events.Hub
	store *config.Store
}

func newAPI(sup *pipeline.Supervisor, hub *events.Hub, store *config.Store) *api {
	return &api{sup: sup, hub: hub, store: store}
}

func (a *api) handleWebsocket(c echo.Context) error {
	conn, err := acceptWebsocket(c.Response().Writer, c.Request())
	if err != nil {
		return err
	}
	a.hub.Add(conn)
	defer a.hub.Remove(conn)

	ctx := c.Request().Context()
	// The socket is write-only from the server's perspective; block here
	// reading (and discarding) client frames until the connection drops,
	// so Remove runs on disconnect.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return nil
		}
	}
}

type createPipelineRequest struct {
	ItemID string `json:"item_id"`
}

func (a *api) createPipeline(c echo.Context) error {
	var req createPipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := a.sup.CreatePipeline(c.Request().Context(), req.ItemID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (a *api) deletePipeline(c echo.Context) error {
	if err := a.sup.DeletePipeline(c.Request().Context()); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) getPipelineState(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"state": a.sup.State().String()})
}

func (a *api) cancel(c echo.Context) error {
	a.sup.Cancel()
	return c.NoContent(http.StatusNoContent)
}

type restartRequest struct {
	Level string `json:"level"`
}

func (a *api) restartAtStep(c echo.Context) error {
	var req restartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	level, ok := pipeline.ParseState(req.Level)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown level "+req.Level)
	}
	if err := a.sup.RestartAtStep(c.Request().Context(), level); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type selectCueSourceRequest struct {
	SourceID string `json:"source_id"`
}

func (a *api) selectCueSource(c echo.Context) error {
	var req selectCueSourceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := a.sup.SelectCueSource(c.Request().Context(), model.CueSourceID(req.SourceID))
	if err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (a *api) getCueSets(c echo.Context) error {
	return c.JSON(http.StatusOK, a.sup.GetCueSets())
}

type selectCueSetRequest struct {
	Cardinality      int       `json:"cardinality"`
	IncludeUnaligned []float64 `json:"include_unaligned"`
}

func (a *api) selectCueSet(c echo.Context) error {
	var req selectCueSetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := a.sup.SelectCueSet(c.Request().Context(), req.Cardinality, req.IncludeUnaligned); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

type configureASRRequest struct {
	TranscribeOn bool   `json:"transcribe_on"`
	ASRID        string `json:"asr_id"`
}

func (a *api) configureASR(c echo.Context) error {
	var req configureASRRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := a.sup.ConfigureASR(c.Request().Context(), req.TranscribeOn, req.ASRID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (a *api) listChapters(c echo.Context) error {
	return c.JSON(http.StatusOK, a.sup.ListChapters())
}

type addChapterRequest struct {
	Timestamp float64 `json:"timestamp"`
	Title     string  `json:"title"`
}

func (a *api) addChapter(c echo.Context) error {
	var req addChapterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := a.sup.AddChapter(c.Request().Context(), req.Timestamp, req.Title); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusCreated)
}

func (a *api) addOptions(c echo.Context) error {
	anchor := c.QueryParam("anchor_id")
	res, err := a.sup.AddOptions(anchor)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type editTitleRequest struct {
	Title string `json:"title"`
}

func (a *api) editTitle(c echo.Context) error {
	var req editTitleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := a.sup.EditTitle(c.Request().Context(), c.Param("id"), req.Title); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type toggleSelectionRequest struct {
	Selected bool `json:"selected"`
}

func (a *api) toggleSelection(c echo.Context) error {
	var req toggleSelectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := a.sup.ToggleSelection(c.Request().Context(), c.Param("id"), req.Selected); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) deleteChapter(c echo.Context) error {
	if err := a.sup.DeleteChapter(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) selectAll(c echo.Context) error {
	if err := a.sup.SelectAll(c.Request().Context()); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) deselectAll(c echo.Context) error {
	if err := a.sup.DeselectAll(c.Request().Context()); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) undo(c echo.Context) error {
	if err := a.sup.Undo(c.Request().Context()); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) redo(c echo.Context) error {
	if err := a.sup.Redo(c.Request().Context()); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) submit(c echo.Context) error {
	if err := a.sup.Submit(c.Request().Context()); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (a *api) getPreferences(c echo.Context) error {
	ai, smartDetectJSON, defaultASRID, err := a.store.LoadPreferences(c.Request().Context())
	if err != nil {
		return httpError(c, err)
	}
	var smartDetect model.SmartDetectConfig
	if len(smartDetectJSON) > 0 {
		if err := json.Unmarshal(smartDetectJSON, &smartDetect); err != nil {
			return httpError(c, err)
		}
	} else {
		smartDetect = model.DefaultSmartDetectConfig()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ai_options":     ai,
		"smart_detect":   smartDetect,
		"default_asr_id": defaultASRID,
	})
}

type savePreferencesRequest struct {
	AIOptions    config.AIOptions        `json:"ai_options"`
	SmartDetect  model.SmartDetectConfig `json:"smart_detect"`
	DefaultASRID string                  `json:"default_asr_id"`
}

func (a *api) savePreferences(c echo.Context) error {
	var req savePreferencesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	smartDetectJSON, err := json.Marshal(req.SmartDetect)
	if err != nil {
		return httpError(c, err)
	}
	if err := a.store.SavePreferences(c.Request().Context(), req.AIOptions, smartDetectJSON, req.DefaultASRID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) export(c echo.Context) error {
	switch c.Param("format") {
	case "csv":
		out, err := a.sup.ExportCSV()
		if err != nil {
			return httpError(c, err)
		}
		return c.Blob(http.StatusOK, "text/csv", []byte(out))
	case "json":
		out, err := a.sup.ExportJSON(time.Now())
		if err != nil {
			return httpError(c, err)
		}
		return c.Blob(http.StatusOK, "application/json", []byte(out))
	case "cue":
		return c.Blob(http.StatusOK, "application/x-cue", []byte(a.sup.ExportCUE()))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown export format")
	}
}

// httpError maps a pipelineerr sentinel-wrapped error to the HTTP status
// that best fits its error class.
func httpError(c echo.Context, err error) error {
	return echo.NewHTTPError(statusFor(err), err.Error())
}
