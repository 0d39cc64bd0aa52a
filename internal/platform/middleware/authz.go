// Copyright (c) 2026 Veriface Labs. All rights reserved.

package middleware

import (
	"net/http"

	"github.com/veriface/veriface/internal/platform/apperr"
	"github.com/veriface/veriface/internal/platform/constants"
	"github.com/veriface/veriface/internal/platform/ctxutil"
	"github.com/veriface/veriface/internal/platform/respond"
	"github.com/veriface/veriface/internal/platform/sec"
)

// RequireAPIKey blocks requests that do not present the administrative API key.
//
// # Flow
//  1. Read the 'X-API-Key' header.
//  2. Compare against the configured bcrypt hash (constant-time).
//  3. On success, mark the context as admin and continue.
//
// # Usage
//
// Mount around administrative routes only (revocation, template lifecycle).
// The key never appears in logs; only the comparison outcome does.
func RequireAPIKey(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			presented := request.Header.Get(constants.HeaderXAPIKey)
			if presented == "" {
				respond.Error(writer, request, apperr.Unauthorized("API key required"))
				return
			}

			if !sec.CheckAPIKey(presented, keyHash) {
				respond.Error(writer, request, apperr.Unauthorized("Invalid API key"))
				return
			}

			ctx := ctxutil.WithAdmin(request.Context())
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}
