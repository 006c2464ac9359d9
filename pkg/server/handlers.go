package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tokenrelay/tokenrelay/pkg/system"
	"github.com/tokenrelay/tokenrelay/pkg/types"
	"github.com/tokenrelay/tokenrelay/pkg/version"
)

const (
	missingFieldsMessage = "Missing required fields: username, password, url"
	bearerPrefix         = "Bearer "
)

func (apiServer *TokenAPIServer) healthHandler(res http.ResponseWriter, req *http.Request) {
	system.Wrapper(func(_ http.ResponseWriter, _ *http.Request) (*types.HealthResponse, *system.HTTPError) {
		return &types.HealthResponse{
			Status:  "running",
			Service: ServiceName,
			Version: version.Version,
		}, nil
	})(res, req)
}

func (apiServer *TokenAPIServer) getTokenHandler(res http.ResponseWriter, req *http.Request) {
	system.Wrapper(apiServer.getToken)(res, req)
}

// getToken validates the request, runs the login flow, and maps the result
// to the response envelope. No browser session is created for invalid
// requests.
func (apiServer *TokenAPIServer) getToken(_ http.ResponseWriter, req *http.Request) (*types.TokenResponse, *system.HTTPError) {
	var loginReq types.LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		return nil, system.NewHTTPError400(fmt.Sprintf("Invalid request body: %s", err))
	}
	if !loginReq.Valid() {
		return nil, system.NewHTTPError400(missingFieldsMessage)
	}

	result, err := apiServer.extractor.RunLogin(req.Context(), &loginReq)
	if err != nil {
		return nil, system.NewHTTPError500(err.Error())
	}

	capturedAt := result.CapturedAt.UTC()
	return &types.TokenResponse{
		Success:             true,
		Token:               result.Token.Value,
		AuthorizationHeader: bearerPrefix + result.Token.Value,
		ExpiresAt:           capturedAt.Add(types.TokenLifetime).Format(time.RFC3339),
		CapturedAt:          capturedAt.Format(time.RFC3339),
		ExecutionTime:       fmt.Sprintf("%.2fs", result.Duration.Seconds()),
	}, nil
}
