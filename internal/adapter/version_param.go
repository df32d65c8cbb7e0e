package adapter

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func parseVersionParam(r *http.Request, key string) (int, error) {
	raw := chi.URLParam(r, key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer version number", key, raw)
	}
	return n, nil
}
