// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // the server verifies HMAC-SHA1
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// HeaderAuthorization carries "Apollo {appId}:{signature}".
	HeaderAuthorization = "Authorization"

	// HeaderTimestamp carries the signing time in Unix milliseconds.
	HeaderTimestamp = "Timestamp"

	authorizationFormat = "Apollo "
)

// Signature computes base64(HMAC-SHA1(secret, timestamp + "\n" + pathWithQuery)).
func Signature(timestamp, pathWithQuery, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(timestamp + "\n" + pathWithQuery))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// AuthHeaders returns the signing headers for rawURL. It returns nil when
// secret is empty.
func AuthHeaders(rawURL, appID, secret string, now time.Time) (http.Header, error) {
	if secret == "" {
		return nil, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	pathWithQuery := u.EscapedPath()
	if u.RawQuery != "" {
		pathWithQuery += "?" + u.RawQuery
	}

	ts := strconv.FormatInt(now.UnixMilli(), 10)
	h := make(http.Header, 2)
	h.Set(HeaderAuthorization, authorizationFormat+appID+":"+Signature(ts, pathWithQuery, secret))
	h.Set(HeaderTimestamp, ts)
	return h, nil
}
