package http_server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rowboatdb/rowboat/catalog"
)

type (
	schemaColumn struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}

	schemaResponse struct {
		Locator    string         `json:"locator"`
		Columns    []schemaColumn `json:"columns"`
		Partitions int            `json:"partitions"`
		TotalRows  int64          `json:"totalRows"`
	}
)

func (s *HTTPServer) GetSchema(c *CustomContext) error {
	locator := c.QueryParam("locator")
	if locator == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "locator query param required")
	}

	dataset, err := catalog.NewParquetCatalog(s.deps.Store, locator).Scan(c.Request().Context())
	if err != nil {
		return c.InternalError(err, "error scanning dataset")
	}

	resp := schemaResponse{
		Locator:    locator,
		Partitions: len(dataset.Partitions),
		TotalRows:  dataset.TotalRows,
	}
	for _, name := range dataset.Schema.Names {
		resp.Columns = append(resp.Columns, schemaColumn{
			Name: name,
			Kind: string(dataset.Schema.Kinds[name]),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) GetClusterStatus(c *CustomContext) error {
	return c.JSON(http.StatusOK, s.deps.Cluster.Status())
}

func (s *HTTPServer) ListRuns(c *CustomContext) error {
	dataset := c.QueryParam("dataset")
	if dataset == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "dataset query param required")
	}
	var limit int64
	if raw := c.QueryParam("limit"); raw != "" {
		var err error
		limit, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
	}

	runs, err := s.deps.Runs.ListRuns(c.Request().Context(), dataset, limit)
	if err != nil {
		return c.InternalError(err, "error listing runs")
	}
	return c.JSON(http.StatusOK, runs)
}
