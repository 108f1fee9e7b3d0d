package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"proxy-checker/internal/domain"
)

var validate = validator.New()

type rawEndpoint struct {
	IP   string `validate:"required,ipv4"`
	Port int    `validate:"min=1,max=65535"`
}

// InvalidError lists every entry of a proxy list that failed to parse.
type InvalidError struct {
	Invalid []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid proxy format: %s", strings.Join(e.Invalid, "; "))
}

// Parse converts an "ip:port" string into a validated endpoint.
func Parse(s string) (domain.ProxyEndpoint, error) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return domain.ProxyEndpoint{}, fmt.Errorf("invalid host:port format: %q", s)
	}

	port, err := strconv.Atoi(strings.TrimSpace(s[idx+1:]))
	if err != nil {
		return domain.ProxyEndpoint{}, fmt.Errorf("invalid port in %q: %w", s, err)
	}

	return New(strings.TrimSpace(s[:idx]), port)
}

// New validates structured ip and port values.
func New(ip string, port int) (domain.ProxyEndpoint, error) {
	raw := rawEndpoint{IP: ip, Port: port}

	// validator accepts some non dotted-quad spellings for ipv4
	if strings.Count(ip, ".") != 3 || strings.ContainsAny(ip, ":[]") {
		return domain.ProxyEndpoint{}, fmt.Errorf("%q is not a dotted-quad IPv4 address", ip)
	}

	if err := validate.Struct(raw); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return domain.ProxyEndpoint{}, formatValidationErrors(raw, validationErrors)
		}
		return domain.ProxyEndpoint{}, fmt.Errorf("proxy validation failed: %w", err)
	}

	return domain.ProxyEndpoint{IP: ip, Port: port}, nil
}

// ParseList parses every entry, reporting all malformed ones at once.
func ParseList(items []string) ([]domain.ProxyEndpoint, error) {
	endpoints := make([]domain.ProxyEndpoint, 0, len(items))
	var invalid []string

	for _, item := range items {
		ep, err := Parse(item)
		if err != nil {
			invalid = append(invalid, err.Error())
			continue
		}
		endpoints = append(endpoints, ep)
	}

	if len(invalid) > 0 {
		return nil, &InvalidError{Invalid: invalid}
	}

	return endpoints, nil
}

func formatValidationErrors(raw rawEndpoint, errs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.Field() {
		case "IP":
			msgs = append(msgs, fmt.Sprintf("%q is not a valid IPv4 address", raw.IP))
		case "Port":
			msgs = append(msgs, fmt.Sprintf("port %d must be between 1 and 65535", raw.Port))
		default:
			msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s", err.Field(), err.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, ", "))
}
