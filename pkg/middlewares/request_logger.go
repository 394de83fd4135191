// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/metrics"
)

// NewRequestLoggerMiddleware logs every request once it completes and, when
// m is not nil, records it under the matched route template.
func NewRequestLoggerMiddleware(serviceName string, logger commons.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if m != nil {
			m.RecordHttpRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)
		}
		logger.Infow("request",
			"service", serviceName,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", elapsed.String(),
			"client_ip", c.ClientIP(),
		)
	}
}
