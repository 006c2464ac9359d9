package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/tokenrelay/tokenrelay/pkg/types"
)

const bearerPrefix = "Bearer "

// Resource types aborted when blocking is enabled. None of them can carry
// the Authorization header we are after.
var blockedResourceTypes = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeImage:      true,
	proto.NetworkResourceTypeStylesheet: true,
	proto.NetworkResourceTypeFont:       true,
	proto.NetworkResourceTypeMedia:      true,
}

// startNetworkCapture wires the passive request observer. It must be
// running before the first navigation so no early token-bearing request is
// missed. Header inspection always happens before the abort/continue
// decision.
func (s *Session) startNetworkCapture(blockResources bool) (*rod.HijackRouter, error) {
	router := s.page.HijackRequests()
	err := router.Add("*", "", func(ctx *rod.Hijack) {
		auth := ctx.Request.Req().Header.Get("Authorization")
		if strings.HasPrefix(auth, bearerPrefix) {
			s.SetToken(strings.TrimPrefix(auth, bearerPrefix), types.TokenSourceNetwork)
		}

		if blockResources && blockedResourceTypes[ctx.Request.Type()] {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("error adding hijack handler: %w", err)
	}
	go router.Run()
	return router, nil
}

// captureFromStorage is the fallback strategy: scan browser storage for a
// token once the flow has settled. Local storage is scanned entirely before
// session storage; the first key yielding a token wins.
func (s *Session) captureFromStorage() {
	if s.Token() != nil {
		return
	}

	dump := s.storageDump
	if dump == nil {
		dump = s.dumpStorage
	}

	areas := []struct {
		name   string
		source types.TokenSource
	}{
		{"localStorage", types.TokenSourceLocalStorage},
		{"sessionStorage", types.TokenSourceSessionStorage},
	}

	for _, area := range areas {
		entries, err := dump(area.name)
		if err != nil {
			s.logger.Warn().Err(err).Str("area", area.name).Msg("failed to read storage")
			continue
		}
		if token, ok := scanStorage(entries); ok {
			s.SetToken(token, area.source)
			return
		}
	}
}

// dumpStorage returns the key/value pairs of a storage area in their
// natural enumeration order.
func (s *Session) dumpStorage(area string) ([][2]string, error) {
	obj, err := s.page.Eval(fmt.Sprintf(`() => JSON.stringify(Object.entries(%s))`, area))
	if err != nil {
		return nil, fmt.Errorf("error dumping %s: %w", area, err)
	}

	var entries [][2]string
	if err := json.Unmarshal([]byte(obj.Value.Str()), &entries); err != nil {
		return nil, fmt.Errorf("error decoding %s dump: %w", area, err)
	}
	return entries, nil
}

// scanStorage walks storage entries in order and returns the first value
// that yields a token.
func scanStorage(entries [][2]string) (string, bool) {
	for _, entry := range entries {
		if token, ok := extractToken(entry[1]); ok {
			return token, true
		}
	}
	return "", false
}

// extractToken applies the token heuristic to one stored value: a raw
// JWT-shaped string (base64url "{" header, i.e. a leading "eyJ") is
// returned as-is; otherwise the value is parsed as JSON and the first
// present of access_token, id_token, token is returned.
func extractToken(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	if strings.HasPrefix(value, "eyJ") {
		return value, true
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return "", false
	}
	for _, candidate := range []string{parsed.AccessToken, parsed.IDToken, parsed.Token} {
		if candidate != "" {
			return candidate, true
		}
	}
	return "", false
}
