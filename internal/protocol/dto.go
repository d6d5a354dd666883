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

import "maps"

// InitialNotificationID is the id of a namespace that has never been
// notified.
const InitialNotificationID int64 = -1

// ServiceDTO is one entry of a discovery response.
type ServiceDTO struct {
	AppName     string `json:"appName"`
	InstanceID  string `json:"instanceId"`
	HomepageURL string `json:"homepageUrl"`
}

// ConfigDTO is the body of a successful config fetch.
type ConfigDTO struct {
	AppID          string            `json:"appId"`
	Cluster        string            `json:"cluster"`
	NamespaceName  string            `json:"namespaceName"`
	Configurations map[string]string `json:"configurations"`
	ReleaseKey     string            `json:"releaseKey"`
}

// NotificationDTO is one entry of a long-poll request or response.
type NotificationDTO struct {
	NamespaceName  string    `json:"namespaceName"`
	NotificationID int64     `json:"notificationId"`
	Messages       *Messages `json:"messages,omitempty"`
}

// Messages carries per-key notification ids, where a key is
// "{appId}+{cluster}+{namespace}".
type Messages struct {
	Details map[string]int64 `json:"details"`
}

// NewMessages returns an empty message set.
func NewMessages() *Messages {
	return &Messages{Details: make(map[string]int64)}
}

// Put records id for key.
func (m *Messages) Put(key string, id int64) {
	if m.Details == nil {
		m.Details = make(map[string]int64)
	}
	m.Details[key] = id
}

// IsEmpty reports whether m carries no details. A nil m is empty.
func (m *Messages) IsEmpty() bool {
	return m == nil || len(m.Details) == 0
}

// Merge copies every entry of src whose id is strictly greater than the
// one already held. Ids never move backwards.
func (m *Messages) Merge(src *Messages) {
	if src.IsEmpty() {
		return
	}
	if m.Details == nil {
		m.Details = make(map[string]int64, len(src.Details))
	}
	for key, id := range src.Details {
		if old, ok := m.Details[key]; ok && old >= id {
			continue
		}
		m.Details[key] = id
	}
}

// Clone returns a deep copy. Cloning nil returns nil.
func (m *Messages) Clone() *Messages {
	if m == nil {
		return nil
	}
	out := NewMessages()
	maps.Copy(out.Details, m.Details)
	return out
}

// MessageKey builds the key under which the server reports a namespace.
func MessageKey(appID, cluster, namespace string) string {
	return appID + "+" + cluster + "+" + namespace
}
