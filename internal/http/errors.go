package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/credit-engine/internal/service/lending"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func badRequest(c echo.Context, desc string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request", "description": desc})
}

// serviceError maps lending errors to a response; anything unknown is a 500.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, lending.ErrInvalidInput):
		return badRequest(c, err.Error())
	case errors.Is(err, lending.ErrCustomerNotFound), errors.Is(err, lending.ErrLoanNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	log.Errorf("%s %s failed: %v", c.Request().Method, c.Path(), err)

	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
}
