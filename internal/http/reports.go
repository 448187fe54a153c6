package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/credit-engine/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listDecisionsHandler(chRepo repository.CHDecisionsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := repository.DecisionFilter{Limit: 50}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}
		if v := strings.TrimSpace(c.QueryParam("customer_id")); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n <= 0 {
				return badRequest(c, "invalid customer_id")
			}
			f.CustomerID = n
		}
		if v := strings.TrimSpace(c.QueryParam("approved")); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return badRequest(c, "approved must be true or false")
			}
			f.Approved = &b
		}

		rows, err := chRepo.ListDecisions(c.Request().Context(), f)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
