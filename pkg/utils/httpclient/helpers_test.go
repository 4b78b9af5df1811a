package httpclient

import (
	"net/http"

	"github.com/kart-io/sentinel-search/pkg/utils/json"
)

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
