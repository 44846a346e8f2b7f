// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gateway

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/respond"
)

/*
NewProxy builds the reverse proxy that carries validated requests upstream.

Description: The Authorization header travels through untouched so backend
trust kernels can re-validate. Upstream connection failures surface as 503
in the standard error envelope instead of a bare 502 page.

Parameters:
  - upstream: *url.URL
  - logger: *slog.Logger

Returns:
  - http.Handler: The proxy
*/
func NewProxy(upstream *url.URL, logger *slog.Logger) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(request *httputil.ProxyRequest) {
			request.SetURL(upstream)
			request.SetXForwarded()
		},
		ErrorHandler: func(writer http.ResponseWriter, request *http.Request, err error) {
			logger.Error("gateway_upstream_failed",
				slog.String("path", request.URL.Path),
				slog.String("error", err.Error()),
			)
			respond.Error(writer, request, apperr.UpstreamUnavailable(err))
		},
	}
	return proxy
}
