package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"drive-service/internal/auth"
	"drive-service/internal/domain/entry"
	apperrors "drive-service/pkg/errors"
	drivevalidator "drive-service/pkg/validator"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	contentTypeJSON          = "application/json"
	maxStrictBodyBytes int64 = 1 << 20 // Keep parser bound aligned with global body limit.
)

// RequestValidator plugs go-playground/validator into echo's Context.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := drivevalidator.Register(v); err != nil {
		panic(err)
	}
	return &RequestValidator{validate: v}
}

func (v *RequestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return apperrors.Validation(msgInvalidField + strings.ToLower(fieldErrs[0].Field()))
	}
	return apperrors.Validation(err.Error())
}

func bindStrictJSON(c echo.Context, dst interface{}) error {
	if !strings.HasPrefix(strings.ToLower(c.Request().Header.Get(echo.HeaderContentType)), contentTypeJSON) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, msgContentTypeJSONRequired)
	}

	body := io.LimitReader(c.Request().Body, maxStrictBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequestBody)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequestBody)
	}

	return c.Validate(dst)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest(msgInvalidEntryID)
	}
	return id, nil
}

// optionalID parses a JSON parent reference; empty means the owner's root.
func optionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, apperrors.BadRequest(msgInvalidParentID)
	}
	return &id, nil
}

func listOptions(c echo.Context) (entry.ListOptions, error) {
	var opts entry.ListOptions
	var err error
	if opts.IncludeTrashed, err = queryBool(c, queryIncludeTrashed); err != nil {
		return opts, err
	}
	if opts.IncludeArchived, err = queryBool(c, queryIncludeArchived); err != nil {
		return opts, err
	}
	return opts, nil
}

func queryBool(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.BadRequest(msgInvalidQueryFlag)
	}
	return v, nil
}

// caller returns the authenticated owner; every drive operation is scoped to it.
func caller(c echo.Context) (uuid.UUID, error) {
	return auth.GetUserID(c)
}
