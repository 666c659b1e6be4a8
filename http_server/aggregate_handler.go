package http_server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rowboatdb/rowboat/agg"
	"github.com/rowboatdb/rowboat/chunk"
	"github.com/rowboatdb/rowboat/df"
	"github.com/rowboatdb/rowboat/runstore"
	"github.com/rowboatdb/rowboat/utils"
	"github.com/rs/zerolog"
)

type (
	AggregateReqBody struct {
		Locator string `validate:"required"`
		Column  string `validate:"required"`
		// Op is the aggregate to compute
		Op            string `validate:"required,oneof=sum mean count value_counts"`
		MaxRuntimeSec *int64
	}

	AggregateResponse struct {
		RunID      string `json:"runID"`
		Dataset    string `json:"dataset"`
		Op         string `json:"op"`
		Column     string `json:"column"`
		Result     any    `json:"result"`
		Partitions int    `json:"partitions"`
		TotalRows  int64  `json:"totalRows"`
		DurationMS int64  `json:"durationMS"`
	}
)

func (s *HTTPServer) AggregateHandler(c *CustomContext) error {
	var reqBody AggregateReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second*time.Duration(utils.Deref(reqBody.MaxRuntimeSec, 60)))
	defer cancel()

	start := time.Now()

	frame, err := df.Open(ctx, s.deps.Cluster, s.deps.Store, df.Options{
		Locator: reqBody.Locator,
		Columns: []string{reqBody.Column},
	})
	if err != nil {
		if errors.Is(err, chunk.ErrSchemaMismatch) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.InternalError(err, "error opening dataset frame")
	}
	defer frame.Close()

	var result any
	switch reqBody.Op {
	case "sum":
		result, err = frame.Sum(ctx, reqBody.Column)
	case "mean":
		result, err = frame.Mean(ctx, reqBody.Column)
	case "count":
		result, err = frame.Count(ctx)
	case "value_counts":
		result, err = frame.ValueCounts(ctx, reqBody.Column)
	}
	if err != nil {
		if errors.Is(err, agg.ErrZeroCount) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.InternalError(err, "error computing aggregate")
	}

	run := runstore.Run{
		ID:         utils.GenKSortedID("run_"),
		Dataset:    reqBody.Locator,
		Op:         reqBody.Op,
		Column:     reqBody.Column,
		Result:     result,
		Partitions: int64(frame.NumPartitions()),
		TotalRows:  frame.Dataset().TotalRows,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err := s.deps.Runs.RecordRun(ctx, run); err != nil {
		// the aggregate itself succeeded, don't fail the request over history
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("runID", run.ID).Msg("error recording run")
	}

	return c.JSON(http.StatusOK, AggregateResponse{
		RunID:      run.ID,
		Dataset:    run.Dataset,
		Op:         run.Op,
		Column:     run.Column,
		Result:     result,
		Partitions: frame.NumPartitions(),
		TotalRows:  frame.Dataset().TotalRows,
		DurationMS: run.DurationMS,
	})
}
