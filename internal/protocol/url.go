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
	"encoding/json"
	"net/url"
	"strings"
)

// DiscoveryURL builds the meta server query for config service instances.
func DiscoveryURL(meta, appID, ip string) string {
	q := url.Values{}
	q.Set("appId", appID)
	if ip != "" {
		q.Set("ip", ip)
	}
	return NormalizeURL(meta) + "services/config?" + q.Encode()
}

// ConfigRequest describes one config fetch.
type ConfigRequest struct {
	AppID      string
	Cluster    string
	Namespace  string
	ReleaseKey string
	DataCenter string
	IP         string
	Label      string
	Messages   *Messages
}

// ConfigURL builds the fetch URL for req against a config service base.
// Optional query parameters are only included when set.
func ConfigURL(base string, req ConfigRequest) (string, error) {
	path := "configs/" + url.PathEscape(req.AppID) + "/" + url.PathEscape(req.Cluster) + "/" + url.PathEscape(req.Namespace)

	q := url.Values{}
	setIf(q, "releaseKey", req.ReleaseKey)
	setIf(q, "dataCenter", req.DataCenter)
	setIf(q, "ip", req.IP)
	setIf(q, "label", req.Label)
	if !req.Messages.IsEmpty() {
		raw, err := json.Marshal(req.Messages)
		if err != nil {
			return "", err
		}
		q.Set("messages", string(raw))
	}
	return withQuery(NormalizeURL(base)+path, q), nil
}

// NotificationsRequest describes one long-poll request.
type NotificationsRequest struct {
	AppID         string
	Cluster       string
	Notifications []NotificationDTO
	DataCenter    string
	IP            string
}

// NotificationsURL builds the long-poll URL. Messages are never sent with a
// notification request.
func NotificationsURL(base string, req NotificationsRequest) (string, error) {
	sent := make([]NotificationDTO, len(req.Notifications))
	for i, n := range req.Notifications {
		sent[i] = NotificationDTO{NamespaceName: n.NamespaceName, NotificationID: n.NotificationID}
	}
	raw, err := json.Marshal(sent)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("appId", req.AppID)
	q.Set("cluster", req.Cluster)
	q.Set("notifications", string(raw))
	setIf(q, "dataCenter", req.DataCenter)
	setIf(q, "ip", req.IP)
	return withQuery(NormalizeURL(base)+"notifications/v2", q), nil
}

// NormalizeURL ensures u ends with a slash.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func withQuery(u string, q url.Values) string {
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}
