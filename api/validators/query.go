package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
)

// IntRange bounds an integer query parameter; Default applies when it is absent.
type IntRange struct {
	Default, Min, Max int
}

// QueryInt reads key from the query string within bounds.
func QueryInt(r *http.Request, key string, bounds IntRange) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return bounds.Default, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]string{key: "must be an integer"})
	}
	if n < bounds.Min || n > bounds.Max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]string{key: "must be between " + strconv.Itoa(bounds.Min) + " and " + strconv.Itoa(bounds.Max)})
	}
	return n, nil
}
