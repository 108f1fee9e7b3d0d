package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"proxy-checker/internal/config"
	"proxy-checker/internal/domain"
	"proxy-checker/internal/endpoint"
)

var validate = validator.New()

type checkOptions struct {
	Timeout      *int  `json:"timeout" validate:"omitempty,min=1000,max=30000"`
	Concurrency  *int  `json:"concurrency" validate:"omitempty,min=1,max=50"`
	IncludeGeoIP *bool `json:"include_geoip"`
}

type batchRequest struct {
	Proxies []string     `json:"proxies" validate:"required,min=1,max=1000,dive,required"`
	Options checkOptions `json:"options"`
	UserID  string       `json:"user_id" validate:"omitempty,max=255"`
}

// requestError is a client error rendered as 400.
type requestError struct {
	Message        string   `json:"error"`
	Details        string   `json:"details,omitempty"`
	InvalidProxies []string `json:"invalid_proxies,omitempty"`
}

func (e *requestError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func invalidRequest(err error) *requestError {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return &requestError{Message: "Invalid request format", Details: formatValidationErrors(validationErrs)}
	}
	return &requestError{Message: "Invalid request format", Details: err.Error()}
}

func invalidProxies(err error) *requestError {
	var invalid *endpoint.InvalidError
	if errors.As(err, &invalid) {
		return &requestError{Message: "Invalid proxy format", InvalidProxies: invalid.Invalid}
	}
	return &requestError{Message: "Invalid proxy format", Details: err.Error()}
}

// toDomain validates req and resolves its options against the configured
// defaults.
func (req batchRequest) toDomain(cfg config.Checker) (domain.BatchRequest, error) {
	if err := validate.Struct(req); err != nil {
		return domain.BatchRequest{}, invalidRequest(err)
	}
	if len(req.Proxies) > cfg.MaxBatchSize {
		return domain.BatchRequest{}, &requestError{
			Message: "Invalid request format",
			Details: fmt.Sprintf("at most %d proxies per request", cfg.MaxBatchSize),
		}
	}

	endpoints, err := endpoint.ParseList(req.Proxies)
	if err != nil {
		return domain.BatchRequest{}, invalidProxies(err)
	}

	out := domain.BatchRequest{
		UserID:    req.UserID,
		Endpoints: endpoints,
		Options: domain.CheckOptions{
			Timeout:     time.Duration(cfg.DefaultTimeoutMs) * time.Millisecond,
			Concurrency: cfg.DefaultConcurrency,
		},
		IncludeGeo: true,
	}
	if req.Options.Timeout != nil {
		out.Options.Timeout = time.Duration(*req.Options.Timeout) * time.Millisecond
	}
	if req.Options.Concurrency != nil {
		out.Options.Concurrency = *req.Options.Concurrency
	}
	if req.Options.IncludeGeoIP != nil {
		out.IncludeGeo = *req.Options.IncludeGeoIP
	}

	return out, nil
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	var errMsgs []string
	for _, err := range errs {
		field := strings.ToLower(err.Field())
		switch err.Tag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be at least %s", field, err.Param()))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be at most %s", field, err.Param()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s failed %s validation", field, err.Tag()))
		}
	}
	return strings.Join(errMsgs, "; ")
}
