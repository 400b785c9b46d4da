package web

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// redirect sends a 302 to location with the given key/value pairs merged into
// its query. Empty string values are skipped.
func redirect(ctx *fiber.Ctx, location string, values ...any) error {
	url, err := url.Parse(location)
	if err != nil {
		return err
	}

	query := url.Query()
	for i := 0; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			slog.Error("invalid query parameter", "key", i)
			continue
		}
		if v := values[i+1]; v != nil {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			query.Set(key, fmt.Sprint(v))
		}
	}

	url.RawQuery = query.Encode()
	return ctx.Redirect(url.String(), fiber.StatusFound)
}

// validRedirectURI reports whether uri is an absolute http(s) URL without a
// fragment.
func validRedirectURI(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != "" && u.Fragment == ""
}
